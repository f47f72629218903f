package tools

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestOrdinal(t *testing.T) {
	cases := map[int]string{
		1:  "1st",
		2:  "2nd",
		3:  "3rd",
		4:  "4th",
		11: "11th",
		12: "12th",
		13: "13th",
		21: "21st",
		22: "22nd",
		23: "23rd",
		30: "30th",
		31: "31st",
	}
	for n, want := range cases {
		assert.Equal(t, want, Ordinal(n), "Ordinal(%d)", n)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, time.August, 21, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "Friday the 21st of aug", FormatTimestamp(ts))

	ts = time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Monday the 2nd of feb", FormatTimestamp(ts))
}

func TestChunkMessageShortMessageStaysWhole(t *testing.T) {
	got := ChunkMessage("hello", 2000)
	assert.Equal(t, []string{"hello"}, got)
}

func TestChunkMessageSplitsAtBoundary(t *testing.T) {
	s := strings.Repeat("a", 5) + strings.Repeat("b", 5) + "cc"
	got := ChunkMessage(s, 5)
	assert.Equal(t, []string{"aaaaa", "bbbbb", "cc"}, got)
}

func TestChunkMessageExactMultiple(t *testing.T) {
	got := ChunkMessage("aabb", 2)
	assert.Equal(t, []string{"aa", "bb"}, got)
}

func TestChunkMessageNonPositiveSize(t *testing.T) {
	got := ChunkMessage("anything", 0)
	assert.Equal(t, []string{"anything"}, got)
}

func TestChunkMessageNeverSplitsRunes(t *testing.T) {
	got := ChunkMessage("ééé", 2)
	assert.Equal(t, []string{"éé", "é"}, got)
	for _, chunk := range got {
		assert.True(t, utf8.ValidString(chunk), "chunk %q", chunk)
	}

	// 机器人自己的署名就带 emoji，4 字节的也得完整
	got = ChunkMessage(strings.Repeat("🤖", 3), 2)
	assert.Equal(t, []string{"🤖🤖", "🤖"}, got)
	for _, chunk := range got {
		assert.True(t, utf8.ValidString(chunk), "chunk %q", chunk)
	}
}

func TestChunkMessageCountsCharactersNotBytes(t *testing.T) {
	// 6 runes / 24 bytes：按字符数算进一条，不该被字节数切碎
	s := "🤖🤖🤖🤖🤖🤖"
	assert.Equal(t, []string{s}, ChunkMessage(s, 6))
}

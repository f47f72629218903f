package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyNaming(t *testing.T) {
	assert.Equal(t, "chode_music_queue_g1", queueKey("g1"))
	assert.Equal(t, "chode_music_history_g1", historyKey("g1"))
	assert.Equal(t, "chode_music_control_g1", controlKey("g1"))
}

func TestKeysAreGuildScoped(t *testing.T) {
	assert.NotEqual(t, queueKey("a"), queueKey("b"))
	assert.NotEqual(t, queueKey("g"), historyKey("g"))
	assert.NotEqual(t, historyKey("g"), controlKey("g"))
}

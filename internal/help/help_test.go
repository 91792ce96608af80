package help

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopic(t *testing.T) {
	assert.Contains(t, Topic(TopicCommands), "protocol_complete_step")
	assert.Contains(t, Topic(TopicGettingStarted), "# Getting Started")
	assert.Equal(t, overview, Topic(""))
	assert.Equal(t, overview, Topic("nonsense"))
}

func TestTopics(t *testing.T) {
	assert.Equal(t, []string{"commands", "getting-started", "protocols", "troubleshooting"}, Topics())
}

package gossip

import (
	"fmt"
	"time"
)

// Message is one originated piece of gossip. It is a value type: every
// delivery hands the recipient its own copy.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Origin    int       `json:"origin"`
	HopCount  int       `json:"hop_count"`
	CreatedAt time.Time `json:"created_at"`
}

// messageID formats msg_<generation>_<counter>_<origin>. The generation is
// bumped on every reset, so ids stay unique across the engine's lifetime even
// though the counter restarts at zero.
func messageID(generation, counter, origin int) string {
	return fmt.Sprintf("msg_%d_%d_%d", generation, counter, origin)
}

func messageContent(origin int) string {
	return fmt.Sprintf("Gossip from node %d", origin)
}

// forwarded returns the copy delivered one hop from the sender.
func (m Message) forwarded() Message {
	m.HopCount++
	return m
}

package domain

// ConversationMetadata is v3kn/conversations/<id>/metadata.json.
type ConversationMetadata struct {
	ConversationID string   `json:"conversation_id"`
	Participants   []string `json:"participants"`
	Creator        string   `json:"creator"`
	CreatedAt      int64    `json:"created_at"`
}

// Message is one entry of v3kn/conversations/<id>/messages.json.
type Message struct {
	From      string `json:"from"`
	Msg       string `json:"msg"`
	Timestamp int64  `json:"timestamp"`
}

func (m *ConversationMetadata) HasParticipant(npid string) bool {
	for _, p := range m.Participants {
		if p == npid {
			return true
		}
	}
	return false
}

func (m *ConversationMetadata) RemoveParticipant(npid string) {
	out := m.Participants[:0:0]
	for _, p := range m.Participants {
		if p != npid {
			out = append(out, p)
		}
	}
	m.Participants = out
}

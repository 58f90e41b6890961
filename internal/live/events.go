// Package live fans board events out to connected clients over
// server-sent events. Delivery is fire-and-forget: slow consumers miss
// messages rather than slowing the board down.
package live

import (
	"encoding/json"
	"time"
)

const (
	EventCardCreated        = "card_created"
	EventCardUpdated        = "card_updated"
	EventCardDeleted        = "card_deleted"
	EventVoteChanged        = "vote_changed"
	EventVotingStatsUpdated = "voting_stats_updated"
	EventSceneChanged       = "scene_changed"
	EventBoardUpdated       = "board_updated"
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventPresenceUpdate     = "presence_update"
	EventTimerUpdate        = "timer_update"
	EventPresentation       = "update_presentation"
	EventCommentAdded       = "comment_added"
	EventAgreementAdded     = "agreement_added"
)

// Marshal serializes an event for the wire. Type-specific fields sit at
// the top level next to the type, board_id and timestamp tags, so those
// three keys are reserved and set exactly here. Timestamps are epoch
// milliseconds.
func Marshal(eventType, boardID string, data map[string]any) ([]byte, error) {
	payload := make(map[string]any, len(data)+3)
	for key, value := range data {
		payload[key] = value
	}
	payload["type"] = eventType
	payload["board_id"] = boardID
	payload["timestamp"] = time.Now().UnixMilli()
	return json.Marshal(payload)
}

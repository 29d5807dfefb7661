package relay

import (
	"context"
	"errors"
	"strings"

	"github.com/xzytten/eventsy-chat-server/internal/store"
)

// chatSummaries builds the admin directory view: every conversation with its
// participant and last-message preview, newest conversations first. A
// non-empty filter is first resolved against the identity directory (name or
// email, case-insensitive substring) and conversations are restricted to the
// matched participants.
func (h *Hub) chatSummaries(ctx context.Context, filter string) ([]ChatSummary, *Error) {
	var participants []string
	if strings.TrimSpace(filter) != "" {
		users, err := h.directory.SearchUsers(ctx, strings.TrimSpace(filter))
		if err != nil {
			h.log.Error().Err(err).Str("filter", filter).Msg("directory search failed")
			return nil, relayError(ErrCodeStoreFailure, "Internal error, try again")
		}
		participants = make([]string, 0, len(users))
		for _, user := range users {
			participants = append(participants, user.Email)
		}
	}

	convs, err := h.convs.ListConversations(ctx, participants)
	if err != nil {
		h.log.Error().Err(err).Msg("list conversations failed")
		return nil, relayError(ErrCodeStoreFailure, "Internal error, try again")
	}

	summaries := make([]ChatSummary, 0, len(convs))
	for _, conv := range convs {
		summary := ChatSummary{
			ID:               conv.ID,
			ParticipantEmail: conv.Participant,
		}

		if user, err := h.directory.FindUserByEmail(ctx, conv.Participant); err == nil {
			summary.ParticipantName = user.Name
		} else if !errors.Is(err, store.ErrNotFound) {
			h.log.Warn().Err(err).Str("participant", conv.Participant).Msg("participant lookup failed")
		}

		if last, err := h.convs.LastMessage(ctx, conv.ID); err == nil {
			summary.LastMessage = last.Text
		} else if !errors.Is(err, store.ErrNotFound) {
			h.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("last message lookup failed")
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

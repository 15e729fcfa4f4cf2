package common

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"dndbot/domain"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const genericMessage = "Something went wrong. Please try again later."

// BotError represents a structured error with user-facing and internal messages
type BotError struct {
	UserMessage string      // Message shown to Discord user
	LogMessage  string      // Internal message for logging
	Ephemeral   bool        // Whether the error message should be ephemeral
	Err         error       // Underlying error
	Context     interface{} // Additional context for logging
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.LogMessage, e.Err)
	}
	return e.LogMessage
}

// Unwrap returns the underlying error
func (e *BotError) Unwrap() error {
	return e.Err
}

// NewUserError creates an error for user-caused issues (validation, insufficient funds, etc)
func NewUserError(userMessage string, logMessage string) *BotError {
	return &BotError{
		UserMessage: userMessage,
		LogMessage:  logMessage,
		Ephemeral:   true,
	}
}

// NewSystemError creates an error for system issues (store, unexpected state, etc)
func NewSystemError(err error, logMessage string) *BotError {
	return &BotError{
		UserMessage: genericMessage,
		LogMessage:  logMessage,
		Ephemeral:   true,
		Err:         err,
	}
}

// invalidDetail returns the text after the invalid input marker
func invalidDetail(err error) string {
	msg := err.Error()
	marker := domain.ErrInvalidInput.Error() + ": "
	if idx := strings.LastIndex(msg, marker); idx >= 0 {
		return msg[idx+len(marker):]
	}
	return msg
}

// FromDomainError classifies a service error into a BotError
func FromDomainError(err error) *BotError {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr
	}

	var (
		dup          *domain.DuplicateNameError
		insufficient *domain.InsufficientFundsError
		notFound     *domain.NotFoundError
	)
	var be *BotError
	switch {
	case errors.As(err, &dup):
		be = NewUserError(fmt.Sprintf("A currency named **%s** already exists in this server.", dup.Name), "duplicate currency name")
	case errors.As(err, &insufficient):
		be = NewUserError(fmt.Sprintf("Insufficient funds: the balance is %s and the change is %s.",
			FormatBalance(insufficient.Balance), FormatAmount(insufficient.Delta)), "insufficient funds")
	case errors.As(err, &notFound):
		be = NewUserError(fmt.Sprintf("No %s found.", notFound.Entity), "not found")
	case errors.Is(err, domain.ErrInvalidInput):
		be = NewUserError(invalidDetail(err), "invalid input")
	case errors.Is(err, domain.ErrConflictExceeded):
		be = NewUserError("The server is busy right now. Please try again.", "conflict retries exhausted")
	case errors.Is(err, domain.ErrLedgerKeyTaken):
		be = NewUserError("The ledger already holds a different entry for this change. Please ask an administrator to check the ledger.", "ledger key taken")
	case errors.Is(err, domain.ErrLedgerPending):
		be = NewUserError("The balance was updated, but its ledger entry is delayed and will be recorded shortly.", "ledger entry pending")
	default:
		return NewSystemError(err, "unexpected error")
	}
	be.Err = err
	return be
}

// RespondWithError sends an error message as an interaction response
func RespondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("❌ %s", message),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("Error sending error response: %v", err)
	}
}

// FollowUpWithError sends an error message as a follow-up to a deferred interaction
func FollowUpWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: fmt.Sprintf("❌ %s", message),
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Errorf("Error sending follow-up error message: %v", err)
	}
}

func interactionFields(i *discordgo.InteractionCreate) log.Fields {
	fields := log.Fields{"guild_id": i.GuildID}
	if user := InteractionUser(i); user != nil {
		fields["user_id"] = user.ID
	}
	if i.Type == discordgo.InteractionApplicationCommand {
		fields["command"] = i.ApplicationCommandData().Name
	}
	return fields
}

// HandleError logs err and responds with the message its classification allows
func HandleError(s *discordgo.Session, i *discordgo.InteractionCreate, err error, deferred bool) {
	botErr := FromDomainError(err)

	logger := log.WithFields(interactionFields(i)).WithFields(log.Fields{
		"error":        botErr.Error(),
		"user_message": botErr.UserMessage,
		"context":      botErr.Context,
	})
	if botErr.UserMessage == genericMessage {
		logger.Error("Unexpected error in bot command")
	} else {
		logger.Info(botErr.LogMessage)
	}

	if deferred {
		FollowUpWithError(s, i, botErr.UserMessage)
	} else {
		RespondWithError(s, i, botErr.UserMessage)
	}
}

// Recover turns a panic in a handler into a logged system error. Use as
// defer common.Recover(s, i).
func Recover(s *discordgo.Session, i *discordgo.InteractionCreate) {
	r := recover()
	if r == nil {
		return
	}
	log.WithFields(interactionFields(i)).WithFields(log.Fields{
		"panic": r,
		"stack": string(debug.Stack()),
	}).Error("Recovered from panic in interaction handler")
	RespondWithError(s, i, genericMessage)
}

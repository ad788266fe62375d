package subscribers

import (
	"encoding/json"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/events"
	"github.com/rs/zerolog"
)

// LoggerSubscriber logs events to structured logs
type LoggerSubscriber struct {
	id              string
	logger          zerolog.Logger
	logLevel        zerolog.Level
	eventTypeFilter map[string]bool // If non-nil, only log these event types
	devMode         bool            // If true, log full event details
}

// NewLoggerSubscriber creates a new logger subscriber
func NewLoggerSubscriber(id string, logger zerolog.Logger, logLevel zerolog.Level) *LoggerSubscriber {
	return &LoggerSubscriber{
		id:       id,
		logger:   logger.With().Str("subscriber", "event_logger").Logger(),
		logLevel: logLevel,
	}
}

// ID returns the subscriber's unique identifier
func (ls *LoggerSubscriber) ID() string {
	return ls.id
}

// SetEventFilter sets which event types to log (nil means log all)
func (ls *LoggerSubscriber) SetEventFilter(eventTypes []string) {
	if len(eventTypes) == 0 {
		ls.eventTypeFilter = nil
		return
	}

	ls.eventTypeFilter = make(map[string]bool)
	for _, eventType := range eventTypes {
		ls.eventTypeFilter[eventType] = true
	}
}

// SetDevMode enables or disables development mode logging
func (ls *LoggerSubscriber) SetDevMode(enabled bool) {
	ls.devMode = enabled
}

// InterestedIn returns true if the subscriber wants to receive this event type
func (ls *LoggerSubscriber) InterestedIn(eventType string) bool {
	if ls.eventTypeFilter == nil {
		return true
	}
	return ls.eventTypeFilter[eventType]
}

// HandleEvent processes an event by logging it
func (ls *LoggerSubscriber) HandleEvent(event events.Event) {
	eventLogger := ls.logger.With().
		Str("event_type", event.Type()).
		Str("run_id", event.RunID()).
		Time("timestamp", event.Timestamp()).
		Logger()

	var logEvent *zerolog.Event
	switch ls.logLevel {
	case zerolog.DebugLevel:
		logEvent = eventLogger.Debug()
	case zerolog.InfoLevel:
		logEvent = eventLogger.Info()
	case zerolog.WarnLevel:
		logEvent = eventLogger.Warn()
	case zerolog.ErrorLevel:
		logEvent = eventLogger.Error()
	default:
		logEvent = eventLogger.Info()
	}

	// Add event-specific fields based on type
	switch e := event.(type) {
	case *events.EpisodeStartedEvent:
		logEvent.
			Int("episode", e.Metadata.Episode).
			Int("rows", e.Rows).
			Int("cols", e.Cols).
			Str("layout", e.Layout)

	case *events.EpisodeEndedEvent:
		logEvent.
			Int("episode", e.Metadata.Episode).
			Str("winner", e.Winner.String()).
			Bool("truncated", e.Truncated).
			Int("steps", e.Steps).
			Dur("duration", e.Duration).
			Ints("scores", e.Scores[:])

	case *events.FlagPickedUpEvent:
		logEvent.
			Str("team", e.Team.String()).
			Int("row", e.Position.Row()).
			Int("col", e.Position.Col())

	case *events.FlagCapturedEvent:
		logEvent.
			Str("team", e.Team.String()).
			Int("row", e.Position.Row()).
			Int("col", e.Position.Col()).
			Int("score", e.Score)

	case *events.MoveRejectedEvent:
		logEvent.
			Str("team", e.Team.String()).
			Int("row", e.From.Row()).
			Int("col", e.From.Col()).
			Str("action", e.Action.String()).
			Str("reason", e.Reason)

	case *events.AgentFailedEvent:
		logEvent.
			Str("team", e.Team.String()).
			Str("error", e.Err)

	case *events.StateTransitionEvent:
		logEvent.
			Str("from", e.FromPhase).
			Str("to", e.ToPhase).
			Str("reason", e.Reason)
	}

	// In dev mode, also log the full event as JSON
	if ls.devMode {
		if jsonData, err := json.Marshal(event); err == nil {
			logEvent.RawJSON("event_data", jsonData)
		}
	}

	logEvent.Msg("Simulation event")
}

package codec

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chainmirror/internal/model"
)

// eventDataPrefix frames structured event payloads inside program log lines.
// Lines without it are plain program output and are ignored.
const eventDataPrefix = "Program data: "

type eventDecodeFunc func(r *payloadReader) (model.EventData, error)

// Extractor parses a transaction's log lines into typed domain events. It is
// stateless apart from its logger and safe for concurrent use.
type Extractor struct {
	registry map[[8]byte]eventDecodeFunc
	logger   *zap.Logger
}

// NewExtractor builds an Extractor with the full known-event registry.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		registry: map[[8]byte]eventDecodeFunc{
			EventDiscriminator("SubjectCreated"):  decodeSubjectCreated,
			EventDiscriminator("DisputeOpened"):   decodeDisputeOpened,
			EventDiscriminator("VoteCast"):        decodeVoteCast,
			EventDiscriminator("StakeDeposited"):  decodeStakeDeposited,
			EventDiscriminator("StakeWithdrawn"):  decodeStakeWithdrawn,
			EventDiscriminator("DisputeResolved"): decodeDisputeResolved,
			EventDiscriminator("RewardClaimed"):   decodeRewardClaimed,
		},
		logger: logger,
	}
}

// ExtractEvents decodes every structured event found in logLines, in order.
// Malformed lines are logged and skipped; one bad line never aborts the
// rest. Ordinals index the emitted sequence, so the output is deterministic
// for a given input.
func (e *Extractor) ExtractEvents(logLines []string) []model.DomainEvent {
	events := make([]model.DomainEvent, 0)
	for i, line := range logLines {
		encoded, ok := strings.CutPrefix(line, eventDataPrefix)
		if !ok {
			continue
		}

		data, err := e.decodeLine(encoded)
		if err != nil {
			e.logger.Warn("skip malformed event line",
				zap.Int("log_index", i),
				zap.Error(err),
			)
			continue
		}

		events = append(events, model.DomainEvent{
			Name:    data.EventName(),
			Ordinal: len(events),
			Data:    data,
		})
	}
	return events
}

func (e *Extractor) decodeLine(encoded string) (model.EventData, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("payload too short for discriminator: %d bytes", len(raw))
	}

	var disc [8]byte
	copy(disc[:], raw[:8])

	decode, ok := e.registry[disc]
	if !ok {
		// Forward compatibility: keep the raw payload so newer program
		// versions survive materialization untouched.
		return model.UnknownEvent{
			Discriminator: hex.EncodeToString(disc[:]),
			Data:          base64.StdEncoding.EncodeToString(raw[8:]),
		}, nil
	}

	data, err := decode(newPayloadReader(raw[8:]))
	if err != nil {
		return nil, fmt.Errorf("decode %x: %w", disc, err)
	}
	return data, nil
}

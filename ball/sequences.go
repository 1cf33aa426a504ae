package ball

import (
	"errors"
	"fmt"

	"kick-analytics/codec"
	"kick-analytics/command"
)

// MaxSamples is the largest capture the ball can transmit.
const MaxSamples = 1096

// Command opcodes written to the command attribute.
const (
	OpRequestSamples  = 10
	OpEndTransmission = 6
	OpDisconnect      = 21
)

// Tags of the sequences the session recognizes.
const (
	TagRequestTypeOne command.Tag = iota + 1
	TagRequestTypeTwo
	TagEndTransmission
)

var (
	ErrInvalidDataType    = errors.New("invalid data type")
	ErrInvalidSampleCount = errors.New("invalid sample count")
)

// RequestSamples returns the sequence asking the ball for n samples of
// dataType. n is clamped to MaxSamples.
func RequestSamples(n int, dataType codec.DataType, h command.Handler) (*command.Sequence, error) {
	tag := TagRequestTypeOne
	switch dataType {
	case codec.TypeOne:
	case codec.TypeTwo:
		tag = TagRequestTypeTwo
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidDataType, dataType)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleCount, n)
	}
	n = min(n, MaxSamples)
	return command.New("request-samples",
		[]command.Command{command.Write(CommandID, requestPayload(n, dataType))},
		command.WithTag(tag, n),
		command.WithHandler(h),
	), nil
}

func requestPayload(n int, dataType codec.DataType) []byte {
	return []byte{OpRequestSamples, 0, 0, 0, 0, byte(n), byte(n >> 8), 0, 0, byte(dataType)}
}

// ParseRequest decodes a request-samples payload as the ball sees it.
func ParseRequest(payload []byte) (n int, dataType codec.DataType, ok bool) {
	if len(payload) != 10 || payload[0] != OpRequestSamples {
		return 0, 0, false
	}
	n = int(payload[5]) | int(payload[6])<<8
	dataType = codec.DataType(payload[9])
	return n, dataType, dataType.Valid()
}

// EndTransmission returns the sequence stopping a running transmission.
func EndTransmission(h command.Handler) *command.Sequence {
	return command.New("end-transmission",
		[]command.Command{command.Write(CommandID, []byte{OpEndTransmission})},
		command.WithTag(TagEndTransmission, 0),
		command.WithHandler(h),
	)
}

// Disconnect returns the sequence asking the ball to drop the connection.
func Disconnect(h command.Handler) *command.Sequence {
	return command.New("disconnect",
		[]command.Command{command.Write(CommandID, []byte{OpDisconnect})},
		command.WithHandler(h),
	)
}

// ArmKick returns the sequence arming kick detection. The ball answers on
// the kick attribute with ready, then kicked.
func ArmKick(h command.Handler) *command.Sequence {
	return command.New("arm-kick",
		[]command.Command{command.Write(KickID, []byte{1})},
		command.WithHandler(h),
	)
}

// ReadBattery returns the sequence reading the battery level.
func ReadBattery(correlationID int, fn command.ReadFunc, h command.Handler) *command.Sequence {
	return command.New("read-battery",
		[]command.Command{command.Read(BatteryID, correlationID, fn)},
		command.WithHandler(h),
	)
}

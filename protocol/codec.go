package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrEmptyPayload = errors.New("protocol: empty payload")
	ErrMalformed    = errors.New("protocol: malformed message")
	ErrUnknownCodec = errors.New("protocol: unknown codec")
)

// Codec 线上编码：解码客户端意图、编码世界快照
type Codec interface {
	Name() string
	DecodeIntent(b []byte) (Intent, error)
	EncodeState(s State) ([]byte, error)
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// ByName 按名称查找编码器（不区分大小写）
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCodec, name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) DecodeIntent(b []byte) (Intent, error) {
	if len(b) == 0 {
		return Intent{}, ErrEmptyPayload
	}
	var in Intent
	if err := json.Unmarshal(b, &in); err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return checkIntent(in)
}

func (jsonCodec) EncodeState(s State) ([]byte, error) {
	return json.Marshal(normalize(s))
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) DecodeIntent(b []byte) (Intent, error) {
	if len(b) == 0 {
		return Intent{}, ErrEmptyPayload
	}
	var in Intent
	if err := msgpack.Unmarshal(b, &in); err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return checkIntent(in)
}

func (msgpackCodec) EncodeState(s State) ([]byte, error) {
	return msgpack.Marshal(normalize(s))
}

func checkIntent(in Intent) (Intent, error) {
	if in.Type == "" {
		return Intent{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return in, nil
}

// normalize 保证空集合编码为 {} / [] 而不是 null
func normalize(s State) State {
	if s.Players == nil {
		s.Players = map[int]PlayerState{}
	}
	if s.Bullets == nil {
		s.Bullets = []BulletState{}
	}
	if s.Powerups == nil {
		s.Powerups = []PowerupState{}
	}
	return s
}

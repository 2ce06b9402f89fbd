package cache

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// DTO timestamps keep nanoseconds.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// DTO payloads hold map[string]any values (ActionRequest data).
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}
}

type entryKind uint8

const (
	kindDirect entryKind = 1
	kindAlias  entryKind = 2
)

// entry is the tagged value stored under every key: either the encoded DTO
// or the full key of the entry it points at.
type entry struct {
	Kind    entryKind `cbor:"1,keyasint"`
	Payload []byte    `cbor:"2,keyasint,omitempty"`
	Target  string    `cbor:"3,keyasint,omitempty"`
}

func encodeDirect(v any) ([]byte, error) {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(entry{Kind: kindDirect, Payload: payload})
}

func encodeAlias(target string) ([]byte, error) {
	return encMode.Marshal(entry{Kind: kindAlias, Target: target})
}

func decodeEntry(raw []byte) (entry, error) {
	var e entry
	if err := decMode.Unmarshal(raw, &e); err != nil {
		return entry{}, err
	}
	switch e.Kind {
	case kindDirect, kindAlias:
		return e, nil
	}
	return entry{}, errUnknownKind
}

package catalog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"livemon/internal/config"
)

// wire preserves non-ASCII text and emits map keys in sorted order so
// snapshots diff cleanly.
var wire = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// ErrSchema reports a payload whose shape does not match the key mapping.
var ErrSchema = errors.New("catalog: schema mismatch")

// Codec converts between wire documents and the catalog model using the
// configured field names.
type Codec struct {
	keys config.Keys
}

// NewCodec returns a Codec for keys.
func NewCodec(keys config.Keys) *Codec {
	return &Codec{keys: keys}
}

// Keys returns the field-name mapping in use.
func (c *Codec) Keys() config.Keys { return c.keys }

// DecodeTree parses a persisted source tree. Blank input yields an empty tree.
func (c *Codec) DecodeTree(data []byte) ([]*Source, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var raw []map[string]any
	if err := wire.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode source tree: %w", err)
	}
	sources := make([]*Source, 0, len(raw))
	for _, entry := range raw {
		if entry == nil {
			continue
		}
		src := &Source{
			Address: stringValue(entry[c.keys.Address]),
			Result:  intValue(entry[c.keys.Result]),
		}
		for _, pf := range objects(entry[c.keys.Platform]) {
			src.Platforms = append(src.Platforms, c.platformFrom(pf))
		}
		src.Extra = extra(entry, c.keys.Address, c.keys.Result, c.keys.Platform)
		sources = append(sources, src)
	}
	return sources, nil
}

// EncodeTree renders the source tree as indented JSON.
func (c *Codec) EncodeTree(sources []*Source) ([]byte, error) {
	out := make([]map[string]any, 0, len(sources))
	for _, src := range sources {
		entry := withExtra(src.Extra)
		entry[c.keys.Address] = src.Address
		entry[c.keys.Result] = src.Result
		platforms := make([]map[string]any, 0, len(src.Platforms))
		for _, pf := range src.Platforms {
			platforms = append(platforms, c.platformMap(pf))
		}
		entry[c.keys.Platform] = platforms
		out = append(out, entry)
	}
	return wire.MarshalIndent(out, "", "  ")
}

// DecodePlatformIndex parses a source index document: an object whose platform
// key holds an array of platform entries. Entries without an address are skipped.
func (c *Codec) DecodePlatformIndex(data []byte) ([]*Platform, error) {
	entries, err := c.listUnder(data, c.keys.Platform)
	if err != nil {
		return nil, err
	}
	platforms := make([]*Platform, 0, len(entries))
	for _, entry := range entries {
		pf := &Platform{
			Address: stringValue(entry[c.keys.Address]),
			Extra:   extra(entry, c.keys.Address, c.keys.Result, c.keys.Channel),
		}
		if pf.Address == "" {
			continue
		}
		platforms = append(platforms, pf)
	}
	return platforms, nil
}

// DecodeChannelList parses a platform document: an object whose channel key
// holds an array of channels. A bare array is accepted too.
func (c *Codec) DecodeChannelList(data []byte) ([]*Channel, error) {
	entries, err := c.listUnder(data, c.keys.Channel)
	if err != nil {
		return nil, err
	}
	channels := make([]*Channel, 0, len(entries))
	for _, entry := range entries {
		ch := c.channelFrom(entry)
		if ch.Address == "" {
			continue
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// EncodeChannels renders a flat channel list as indented JSON.
func (c *Codec) EncodeChannels(channels []*Channel) ([]byte, error) {
	out := make([]map[string]any, 0, len(channels))
	for _, ch := range channels {
		out = append(out, c.channelMap(ch))
	}
	return wire.MarshalIndent(out, "", "  ")
}

// DecodeChannels parses a flat channel list such as the live output.
func (c *Codec) DecodeChannels(data []byte) ([]*Channel, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var raw []map[string]any
	if err := wire.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode channel list: %w", err)
	}
	channels := make([]*Channel, 0, len(raw))
	for _, entry := range raw {
		if entry != nil {
			channels = append(channels, c.channelFrom(entry))
		}
	}
	return channels, nil
}

func (c *Codec) listUnder(data []byte, key string) ([]map[string]any, error) {
	var doc any
	if err := wire.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	switch v := doc.(type) {
	case []any:
		return objects(v), nil
	case map[string]any:
		list, ok := v[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrSchema, key)
		}
		if _, isList := list.([]any); !isList {
			return nil, fmt.Errorf("%w: %q is not an array", ErrSchema, key)
		}
		return objects(list), nil
	default:
		return nil, fmt.Errorf("%w: expected object or array", ErrSchema)
	}
}

func (c *Codec) platformFrom(entry map[string]any) *Platform {
	pf := &Platform{
		Address: stringValue(entry[c.keys.Address]),
		Result:  intValue(entry[c.keys.Result]),
		Extra:   extra(entry, c.keys.Address, c.keys.Result, c.keys.Channel),
	}
	for _, ch := range objects(entry[c.keys.Channel]) {
		pf.Channels = append(pf.Channels, c.channelFrom(ch))
	}
	return pf
}

func (c *Codec) platformMap(pf *Platform) map[string]any {
	entry := withExtra(pf.Extra)
	entry[c.keys.Address] = pf.Address
	entry[c.keys.Result] = pf.Result
	channels := make([]map[string]any, 0, len(pf.Channels))
	for _, ch := range pf.Channels {
		channels = append(channels, c.channelMap(ch))
	}
	entry[c.keys.Channel] = channels
	return entry
}

func (c *Codec) channelFrom(entry map[string]any) *Channel {
	return &Channel{
		Address: stringValue(entry[c.keys.Address]),
		Name:    stringValue(entry[c.keys.Name]),
		Extra:   extra(entry, c.keys.Address, c.keys.Name),
	}
}

func (c *Codec) channelMap(ch *Channel) map[string]any {
	entry := withExtra(ch.Extra)
	entry[c.keys.Address] = ch.Address
	entry[c.keys.Name] = ch.Name
	return entry
}

func objects(value any) []map[string]any {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func extra(entry map[string]any, known ...string) map[string]any {
	var out map[string]any
	for key, value := range entry {
		skip := false
		for _, k := range known {
			if key == k {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[key] = value
	}
	return out
}

func withExtra(src map[string]any) map[string]any {
	out := make(map[string]any, len(src)+3)
	for k, v := range src {
		out[k] = v
	}
	return out
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func intValue(value any) int {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

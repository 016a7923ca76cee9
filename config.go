package nsqc

import (
	"crypto/tls"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// IdentifyResponse is the metadata the broker returns from IDENTIFY,
// generalizing the teacher's IdentifyResponse struct with the fields the
// spec requires Conn to act on (spec.md §4.2).
type IdentifyResponse struct {
	MaxRdyCount       int64  `json:"max_rdy_count"`
	TLSv1             bool   `json:"tls_v1"`
	Deflate           bool   `json:"deflate"`
	Snappy            bool   `json:"snappy"`
	AuthRequired      bool   `json:"auth_required"`
	MsgTimeoutMs      int64  `json:"msg_timeout"`
	HeartbeatInterval int64  `json:"heartbeat_interval"`
}

// Config is the flat handshake/feature record spec.md §3 calls "connection
// features" combined with the teacher's exported Conn/Writer fields
// ("what the library offers"). Per the design note in spec.md §9, this is
// the single structured entry point; Set is the historical kwargs-style
// translation layer on top of it, kept because the teacher's own CLI tools
// (nsq_event_router.go's `-reader-opt key=value` flags) configure this way.
type Config struct {
	ClientID   string // client_id; defaults to the short hostname
	Hostname   string // hostname; defaults to the long hostname
	UserAgent  string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	HeartbeatInterval time.Duration
	MsgTimeout        time.Duration
	SampleRate        int32

	FeatureNegotiation bool

	TLSv1     bool
	TLSConfig *tls.Config

	Deflate      bool
	DeflateLevel int
	Snappy       bool

	OutputBufferSize    int64
	OutputBufferTimeout time.Duration

	MaxInFlight int

	AuthSecret string

	LookupPollInterval time.Duration
	LookupPollJitter   float64
}

// NewConfig returns a Config populated with the defaults from spec.md §6,
// mirroring the teacher's NewConn defaults (maxRdyCount seed aside, which
// is negotiated, not configured).
func NewConfig() *Config {
	hostname, _ := os.Hostname()
	short := hostname
	if i := strings.Index(hostname, "."); i >= 0 {
		short = hostname[:i]
	}
	return &Config{
		ClientID:  short,
		Hostname:  hostname,
		UserAgent: fmt.Sprintf("go-nsqc/%s", VERSION),

		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,

		HeartbeatInterval:  DefaultHeartbeatInterval,
		MsgTimeout:         DefaultMsgTimeout,
		FeatureNegotiation: true,

		DeflateLevel:        6,
		OutputBufferSize:    16 * 1024,
		OutputBufferTimeout: 250 * time.Millisecond,

		MaxInFlight: 1,

		LookupPollInterval: DefaultLookupPollInterval,
		LookupPollJitter:   DefaultLookupPollJitter,
	}
}

// configFieldByOption maps the lowercase snake_case option name (as
// used in -reader-opt flags and IDENTIFY JSON keys) to the exported Config
// field name, so Set can be driven by either convention.
var configFieldByOption = map[string]string{
	"client_id":             "ClientID",
	"hostname":              "Hostname",
	"user_agent":            "UserAgent",
	"dial_timeout":          "DialTimeout",
	"read_timeout":          "ReadTimeout",
	"write_timeout":         "WriteTimeout",
	"heartbeat_interval":    "HeartbeatInterval",
	"msg_timeout":           "MsgTimeout",
	"sample_rate":           "SampleRate",
	"feature_negotiation":   "FeatureNegotiation",
	"tls_v1":                "TLSv1",
	"deflate":               "Deflate",
	"deflate_level":         "DeflateLevel",
	"snappy":                "Snappy",
	"output_buffer_size":    "OutputBufferSize",
	"output_buffer_timeout": "OutputBufferTimeout",
	"max_in_flight":         "MaxInFlight",
	"auth_secret":           "AuthSecret",
	"lookup_poll_interval":  "LookupPollInterval",
	"lookup_poll_jitter":    "LookupPollJitter",
}

// Set assigns value to the Config field named by option (either the
// option's snake_case wire name, e.g. "max_in_flight", or its exported Go
// field name, e.g. "MaxInFlight"), decoding loosely-typed input (strings
// from a CLI flag, JSON numbers, etc.) via mapstructure the same way the
// teacher's reader-opt flags poke values into a Conn/Writer by name.
// An unknown option name, or a value that can't be coerced to the target
// field's type, is a synchronous error — the spec fixes this as a hard
// failure rather than silently ignoring unknown options (spec.md §9).
func (c *Config) Set(option string, value interface{}) error {
	fieldName, ok := configFieldByOption[option]
	if !ok {
		fieldName = option
	}

	rv := reflect.ValueOf(c).Elem()
	field := rv.FieldByName(fieldName)
	if !field.IsValid() || !field.CanSet() {
		return fmt.Errorf("nsqc: unknown config option %q", option)
	}

	// durations are commonly supplied as milliseconds (matching the wire
	// IDENTIFY encoding) when value is numeric and the field is a
	// time.Duration; mapstructure's WeaklyTypedInput handles the rest
	// (string "200" -> int, "true"/"false" -> bool, and so on).
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		if ms, err := coerceMillisDuration(value); err == nil {
			field.Set(reflect.ValueOf(ms))
			return nil
		}
	}

	target := field.Addr().Interface()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(value)
}

func coerceMillisDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v) * time.Millisecond, nil
	default:
		return 0, fmt.Errorf("not a duration-coercible numeric value")
	}
}

// Validate performs the synchronous validation checks spec.md §7 calls
// out: bad config type/values caught at the call site, before a connect
// is ever attempted.
func (c *Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("nsqc: HeartbeatInterval must be positive")
	}
	if c.MsgTimeout <= 0 {
		return fmt.Errorf("nsqc: MsgTimeout must be positive")
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("nsqc: MaxInFlight must be >= 0")
	}
	if c.DeflateLevel < 0 || c.DeflateLevel > 9 {
		return fmt.Errorf("nsqc: DeflateLevel must be in [0,9]")
	}
	return nil
}

// identifyPayload builds the map[string]interface{} IDENTIFY sends: the
// key set in spec.md §6 plus output_buffer_size and output_buffer_timeout.
func (c *Config) identifyPayload() map[string]interface{} {
	return map[string]interface{}{
		"client_id":             c.ClientID,
		"hostname":              c.Hostname,
		"user_agent":            c.UserAgent,
		"feature_negotiation":   c.FeatureNegotiation,
		"heartbeat_interval":    int64(c.HeartbeatInterval / time.Millisecond),
		"msg_timeout":           int64(c.MsgTimeout / time.Millisecond),
		"sample_rate":           c.SampleRate,
		"tls_v1":                c.TLSv1,
		"snappy":                c.Snappy,
		"deflate":               c.Deflate,
		"deflate_level":         c.DeflateLevel,
		"output_buffer_size":    c.OutputBufferSize,
		"output_buffer_timeout": int64(c.OutputBufferTimeout / time.Millisecond),
	}
}

package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/leafscan/internal/logger"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Logging = logger.LoggingConfig{DefaultLevel: "info"}
	s.Classifier = ClassifierSettings{ModelPath: "model.tflite", LabelsPath: "labels.json"}
	s.History.SQLite = SQLiteSettings{Enabled: true, Path: "leafscan.db"}
	s.WebServer = WebServerSettings{Enabled: true, Port: "8080", UploadDir: "uploads", RateLimit: 5, Burst: 10}
	s.Session.TTL = time.Minute
	return s
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"bad log level", func(s *Settings) { s.Logging.DefaultLevel = "loud" }, `logging: invalid default level "loud"`},
		{"no model paths", func(s *Settings) { s.Classifier.ModelPath = "" }, "classifier: at least one of modelpath, modeldir or quantizedpath must be set"},
		{"negative threads", func(s *Settings) { s.Classifier.Threads = -1 }, "classifier: threads must be >= 0, got -1"},
		{"both backends", func(s *Settings) {
			s.History.MySQL = MySQLSettings{Enabled: true, Host: "db", Port: "3306", Database: "x"}
		}, "history: sqlite and mysql cannot both be enabled"},
		{"mysql port", func(s *Settings) {
			s.History.SQLite.Enabled = false
			s.History.MySQL = MySQLSettings{Enabled: true, Host: "db", Port: "abc", Database: "x"}
		}, `history: mysql invalid port "abc"`},
		{"webserver port", func(s *Settings) { s.WebServer.Port = "70000" }, `webserver: invalid port "70000"`},
		{"webserver disabled skips checks", func(s *Settings) { s.WebServer = WebServerSettings{} }, ""},
		{"burst", func(s *Settings) { s.WebServer.Burst = 0 }, "webserver: burst must be >= 1 when rate limiting is enabled"},
		{"mqtt scheme", func(s *Settings) {
			s.MQTT = MQTTSettings{Enabled: true, Broker: "http://broker:1883", Topic: "t"}
		}, `mqtt: unsupported broker scheme "http"`},
		{"mqtt topic", func(s *Settings) {
			s.MQTT = MQTTSettings{Enabled: true, Broker: "tcp://broker:1883"}
		}, "mqtt: topic is required"},
		{"sentry dsn", func(s *Settings) { s.Sentry.Enabled = true }, "sentry: dsn is required when enabled"},
		{"session ttl", func(s *Settings) { s.Session.TTL = 0 }, "session: ttl must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Errors, tt.wantErr)
		})
	}
}

func TestValidationError_CollectsAll(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Classifier.Threads = -2
	s.Session.TTL = 0

	err := ValidateSettings(s)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
	assert.Contains(t, ve.Error(), "Validation errors")
}

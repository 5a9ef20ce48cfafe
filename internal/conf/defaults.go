// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration. Every key that can be
// overridden from the environment needs a default here, otherwise viper
// does not know about it during Unmarshal.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "leafscan")

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.fileoutput.enabled", false)
	viper.SetDefault("logging.fileoutput.path", "logs/leafscan.log")
	viper.SetDefault("logging.fileoutput.level", "info")

	viper.SetDefault("classifier.modelpath", "model/coffee_disease_model.tflite")
	viper.SetDefault("classifier.modeldir", "model/coffee_disease_savedmodel")
	viper.SetDefault("classifier.quantizedpath", "model/coffee_disease_model_quant.tflite")
	viper.SetDefault("classifier.labelspath", "model/labels.json")
	viper.SetDefault("classifier.threads", 0)
	viper.SetDefault("classifier.usexnnpack", true)

	viper.SetDefault("history.sqlite.enabled", true)
	viper.SetDefault("history.sqlite.path", "leafscan.db")
	viper.SetDefault("history.mysql.enabled", false)
	viper.SetDefault("history.mysql.host", "localhost")
	viper.SetDefault("history.mysql.port", "3306")
	viper.SetDefault("history.mysql.username", "leafscan")
	viper.SetDefault("history.mysql.password", "")
	viper.SetDefault("history.mysql.database", "coffee_disease_db")
	viper.SetDefault("history.slowthreshold", 200*time.Millisecond)

	viper.SetDefault("remedy.remediespath", "")
	viper.SetDefault("remedy.translationspath", "")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.uploaddir", "uploads")
	viper.SetDefault("webserver.ratelimit", 5.0)
	viper.SetDefault("webserver.burst", 10)
	viper.SetDefault("webserver.bodylimit", "10M")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "leafscan/detections")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.clientid", "leafscan")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")

	viper.SetDefault("session.ttl", 30*time.Minute)
}

package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/sohriai/gateway/pkg/utils"
)

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	Env      string `mapstructure:"env" validate:"required"`

	// Endpoint-detector websocket.
	WsURL               string        `mapstructure:"ws_url" validate:"required"`
	WsReconnectInterval time.Duration `mapstructure:"ws_reconnect_interval" validate:"required"`
	WsHeartbeatInterval time.Duration `mapstructure:"ws_heartbeat_interval" validate:"required"`

	// Speech recognition HTTP API.
	SpeechAPIURL      string `mapstructure:"speech_api_url" validate:"required"`
	SpeechAPIBatchURL string `mapstructure:"speech_api_batch_url" validate:"required"`
	SpeechAPIToken    string `mapstructure:"speech_api_token"`
	SpeechAudioFormat string `mapstructure:"speech_audio_format" validate:"oneof=wav mp3"`

	// Scratch directories for encoded audio.
	TempDir   string `mapstructure:"temp_dir" validate:"required"`
	WavDir    string `mapstructure:"wav_dir" validate:"required"`
	ResultDir string `mapstructure:"result_dir" validate:"required"`

	// Recognition dispatch.
	DispatchInterval  time.Duration `mapstructure:"dispatch_interval" validate:"required"`
	DispatchBatchSize int           `mapstructure:"dispatch_batch_size" validate:"required,min=1"`

	// Turn-end drain.
	DrainIdleInterval time.Duration `mapstructure:"drain_idle_interval" validate:"required"`
	DrainMaxWait      time.Duration `mapstructure:"drain_max_wait" validate:"required"`
}

func (c *AppConfig) Environment() utils.SohriEnvironment {
	return utils.FromEnvironmentStr(c.Env)
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env variables.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	v.SetDefault("SERVICE_NAME", "sohri-gateway")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("ENV", "development")

	env := utils.FromEnvironmentStr(v.GetString("ENV"))
	if env.IsProduction() {
		v.SetDefault("WS_URL", "ws://epd.sohri.internal:8081/epd")
		v.SetDefault("SPEECH_API_URL", "http://speech.sohri.internal:8082/speech")
		v.SetDefault("SPEECH_API_BATCH_URL", "http://speech.sohri.internal:8082/speech/batch")
	} else {
		v.SetDefault("WS_URL", "ws://localhost:8081/epd")
		v.SetDefault("SPEECH_API_URL", "http://localhost:8082/speech")
		v.SetDefault("SPEECH_API_BATCH_URL", "http://localhost:8082/speech/batch")
	}

	v.SetDefault("WS_RECONNECT_INTERVAL", "3s")
	v.SetDefault("WS_HEARTBEAT_INTERVAL", "30s")
	v.SetDefault("SPEECH_API_TOKEN", "")
	v.SetDefault("SPEECH_AUDIO_FORMAT", "wav")

	v.SetDefault("TEMP_DIR", "./tmp")
	v.SetDefault("WAV_DIR", "./wav")
	v.SetDefault("RESULT_DIR", "./results")

	v.SetDefault("DISPATCH_INTERVAL", "500ms")
	v.SetDefault("DISPATCH_BATCH_SIZE", 16)
	v.SetDefault("DRAIN_IDLE_INTERVAL", "500ms")
	v.SetDefault("DRAIN_MAX_WAIT", "25s")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}

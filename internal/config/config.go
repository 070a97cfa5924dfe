// Package config loads the application configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/holistic/internal/model"
	"github.com/ayusman/holistic/internal/pipeline"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "holistic.yaml"

type Config struct {
	Pipeline     PipelineConfig     `mapstructure:"pipeline" json:"pipeline"`
	Camera       CameraConfig       `mapstructure:"camera" json:"camera"`
	ModelService ModelServiceConfig `mapstructure:"model_service" json:"model_service"`
	Store        StoreConfig        `mapstructure:"store" json:"store"`
	Server       ServerConfig       `mapstructure:"server" json:"server"`
}

type PipelineConfig struct {
	ModelVariant          string        `mapstructure:"model_variant" json:"model_variant"`
	DetectionThreshold    float64       `mapstructure:"detection_threshold" json:"detection_threshold"`
	IOUThreshold          float64       `mapstructure:"iou_threshold" json:"iou_threshold"`
	HandFallbackThreshold float64       `mapstructure:"hand_fallback_threshold" json:"hand_fallback_threshold"`
	InferenceMode         string        `mapstructure:"inference_mode" json:"inference_mode"`
	HumanExistThreshold   float64       `mapstructure:"human_exist_threshold" json:"human_exist_threshold"`
	SmoothingTimeConstant time.Duration `mapstructure:"smoothing_time_constant" json:"smoothing_time_constant"`
	WorkingSize           int           `mapstructure:"working_size" json:"working_size"`
}

type CameraConfig struct {
	DeviceID        int     `mapstructure:"device_id" json:"device_id"`
	FPS             int     `mapstructure:"fps" json:"fps"`
	IdleFPS         int     `mapstructure:"idle_fps" json:"idle_fps"`
	MotionThreshold float64 `mapstructure:"motion_threshold" json:"motion_threshold"`
}

type ModelServiceConfig struct {
	Python      string        `mapstructure:"python" json:"python"`
	Script      string        `mapstructure:"script" json:"script"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout"`
	CropSize    int           `mapstructure:"crop_size" json:"crop_size"`
}

type StoreConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
	Mode string `mapstructure:"mode" json:"mode"`
}

// Load reads configPath. A missing file yields the defaults; a malformed
// one is an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("HOLISTIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New loads DefaultPath, falling back to the defaults on any error.
func New() *Config {
	cfg, err := Load(DefaultPath)
	if err != nil {
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("pipeline.model_variant", d.Pipeline.ModelVariant)
	v.SetDefault("pipeline.detection_threshold", d.Pipeline.DetectionThreshold)
	v.SetDefault("pipeline.iou_threshold", d.Pipeline.IOUThreshold)
	v.SetDefault("pipeline.hand_fallback_threshold", d.Pipeline.HandFallbackThreshold)
	v.SetDefault("pipeline.inference_mode", d.Pipeline.InferenceMode)
	v.SetDefault("pipeline.human_exist_threshold", d.Pipeline.HumanExistThreshold)
	v.SetDefault("pipeline.smoothing_time_constant", d.Pipeline.SmoothingTimeConstant)
	v.SetDefault("pipeline.working_size", d.Pipeline.WorkingSize)

	v.SetDefault("camera.device_id", d.Camera.DeviceID)
	v.SetDefault("camera.fps", d.Camera.FPS)
	v.SetDefault("camera.idle_fps", d.Camera.IdleFPS)
	v.SetDefault("camera.motion_threshold", d.Camera.MotionThreshold)

	v.SetDefault("model_service.python", d.ModelService.Python)
	v.SetDefault("model_service.script", d.ModelService.Script)
	v.SetDefault("model_service.idle_timeout", d.ModelService.IdleTimeout)
	v.SetDefault("model_service.crop_size", d.ModelService.CropSize)

	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
}

// Default returns the built-in configuration.
func Default() *Config {
	pc := pipeline.DefaultConfig()
	sc := model.DefaultServiceConfig()

	return &Config{
		Pipeline: PipelineConfig{
			ModelVariant:          string(pc.ModelVariant),
			DetectionThreshold:    pc.DetectionThreshold,
			IOUThreshold:          pc.IOUThreshold,
			HandFallbackThreshold: pc.HandFallbackThreshold,
			InferenceMode:         string(pc.InferenceMode),
			HumanExistThreshold:   pc.HumanExistThreshold,
			SmoothingTimeConstant: pc.SmoothingTimeConstant,
			WorkingSize:           pc.WorkingSize,
		},
		Camera: CameraConfig{
			DeviceID:        0,
			FPS:             15,
			IdleFPS:         5,
			MotionThreshold: 1.0,
		},
		ModelService: ModelServiceConfig{
			IdleTimeout: sc.IdleTimeout,
			CropSize:    sc.CropSize,
		},
		Store: StoreConfig{
			Path: "holistic.db",
		},
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "debug",
		},
	}
}

// PipelineConfig converts the pipeline section, validating enum fields.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	mode, err := pipeline.ParseInferenceMode(c.Pipeline.InferenceMode)
	if err != nil {
		return pipeline.Config{}, err
	}

	pc := pipeline.DefaultConfig()
	pc.ModelVariant = model.Variant(c.Pipeline.ModelVariant)
	pc.DetectionThreshold = c.Pipeline.DetectionThreshold
	pc.IOUThreshold = c.Pipeline.IOUThreshold
	pc.HandFallbackThreshold = c.Pipeline.HandFallbackThreshold
	pc.InferenceMode = mode
	pc.HumanExistThreshold = c.Pipeline.HumanExistThreshold
	pc.SmoothingTimeConstant = c.Pipeline.SmoothingTimeConstant
	pc.WorkingSize = c.Pipeline.WorkingSize

	if err := pc.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return pc, nil
}

// ServiceConfig converts the model_service section.
func (c *Config) ServiceConfig() model.ServiceConfig {
	return model.ServiceConfig{
		Python:      c.ModelService.Python,
		Script:      c.ModelService.Script,
		IdleTimeout: c.ModelService.IdleTimeout,
		CropSize:    c.ModelService.CropSize,
	}
}

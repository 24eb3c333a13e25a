package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		DebugHost          string
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite3
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		DSN           string // sqlite3 only
	}

	ProctorConfig struct {
		EnableFullscreen         bool
		EnableTabSwitchDetection bool
		EnableCopyCutPaste       bool
		EnableRightClick         bool
		EnableDevTools           bool
		EnableScreenshot         bool
		EnableMobileProctoring   bool
		MaxViolations            int
		InvigilatorEmail         string
		OutboxSize               int
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail mail.Address

		Server   ServerConfig
		Database DatabaseConfig
		Proctor  ProctorConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig reads the configuration from the environment.
// ENV selects the profile (DEV by default, TEST, QA, PROD) and the env prefix of every key.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "ExamGuard")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("defaultFromName", "ExamGuard")

	v.SetDefault("serverHost", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverReadTimeout", 5*time.Second)
	v.SetDefault("serverWriteTimeout", 5*time.Second)
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 6*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "examguard")
	v.SetDefault("dbUser", "examguard")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("dbDSN", "file:examguard.db?_foreign_keys=on")

	v.SetDefault("proctorEnableFullscreen", true)
	v.SetDefault("proctorEnableTabSwitchDetection", true)
	v.SetDefault("proctorEnableCopyCutPaste", false)
	v.SetDefault("proctorEnableRightClick", false)
	v.SetDefault("proctorEnableDevTools", true)
	v.SetDefault("proctorEnableScreenshot", false)
	v.SetDefault("proctorEnableMobileProctoring", false)
	v.SetDefault("proctorMaxViolations", 3)
	v.SetDefault("proctorInvigilatorEmail", "")
	v.SetDefault("proctorOutboxSize", 64)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("debug", false)
		v.SetDefault("dbEngine", "sqlite3")
		v.SetDefault("dbDSN", "file::memory:?cache=shared")
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			DebugHost:          v.GetString("serverDebugHost"),
			ReadTimeout:        v.GetDuration("serverReadTimeout"),
			WriteTimeout:       v.GetDuration("serverWriteTimeout"),
			ShutdownTimeout:    v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
			DSN:           v.GetString("dbDSN"),
		},
		Proctor: ProctorConfig{
			EnableFullscreen:         v.GetBool("proctorEnableFullscreen"),
			EnableTabSwitchDetection: v.GetBool("proctorEnableTabSwitchDetection"),
			EnableCopyCutPaste:       v.GetBool("proctorEnableCopyCutPaste"),
			EnableRightClick:         v.GetBool("proctorEnableRightClick"),
			EnableDevTools:           v.GetBool("proctorEnableDevTools"),
			EnableScreenshot:         v.GetBool("proctorEnableScreenshot"),
			EnableMobileProctoring:   v.GetBool("proctorEnableMobileProctoring"),
			MaxViolations:            v.GetInt("proctorMaxViolations"),
			InvigilatorEmail:         v.GetString("proctorInvigilatorEmail"),
			OutboxSize:               v.GetInt("proctorOutboxSize"),
		},
	}
}

// configDir is where the optional .env files live. CONFIG_DIR overrides the default "config" dir.
func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	return filepath.Join(wd, "config")
}

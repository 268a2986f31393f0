package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JsonConfig mirrors Config for JSON files. Empty strings and nil pointers
// mean "absent", so a partial file only overrides what it names.
type JsonConfig struct {
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	MetricsAddr      string `json:"metrics_addr"`
	DatabaseDSN      string `json:"database_dsn"`
	LogLevel         string `json:"log_level"`

	AccessTokenSecret   string `json:"access_token_secret"`
	RefreshTokenSecret  string `json:"refresh_token_secret"`
	ActivateTokenSecret string `json:"activate_token_secret"`
	ForgotTokenSecret   string `json:"forgot_token_secret"`

	AccessTokenValidityDuration  *Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *Duration `json:"refresh_token_validity_duration"`
	ActionTokenValidityDuration  *Duration `json:"action_token_validity_duration"`

	BcryptCost           *int  `json:"bcrypt_cost"`
	AllowPendingLogin    *bool `json:"allow_pending_login"`
	PasswordHistoryDepth *int  `json:"password_history_depth"`

	TokenRetention        *Duration `json:"token_retention"`
	PasswordRetention     *Duration `json:"password_retention"`
	TokenSweepInterval    *Duration `json:"token_sweep_interval"`
	PasswordSweepInterval *Duration `json:"password_sweep_interval"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	SMTPHost     string    `json:"smtp_host"`
	SMTPPort     *int      `json:"smtp_port"`
	SMTPUser     string    `json:"smtp_user"`
	SMTPPassword string    `json:"smtp_password"`
	SMTPFrom     string    `json:"smtp_from"`
	SMTPTimeout  *Duration `json:"smtp_timeout"`
	FrontURL     string    `json:"front_url"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Without the flag nothing is loaded.
func parseJson(config *Config) error {
	path := jsonConfigPath()
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)

	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.ActivateTokenSecret, c.ActivateTokenSecret)
	setString(&config.ForgotTokenSecret, c.ForgotTokenSecret)

	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.ActionTokenValidityDuration, c.ActionTokenValidityDuration)

	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.AllowPendingLogin != nil {
		config.AllowPendingLogin = *c.AllowPendingLogin
	}
	if c.PasswordHistoryDepth != nil {
		config.PasswordHistoryDepth = *c.PasswordHistoryDepth
	}

	setDuration(&config.TokenRetention, c.TokenRetention)
	setDuration(&config.PasswordRetention, c.PasswordRetention)
	setDuration(&config.TokenSweepInterval, c.TokenSweepInterval)
	setDuration(&config.PasswordSweepInterval, c.PasswordSweepInterval)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort != nil {
		config.SMTPPort = *c.SMTPPort
	}
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setDuration(&config.SMTPTimeout, c.SMTPTimeout)
	setString(&config.FrontURL, c.FrontURL)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = v.Duration
	}
}

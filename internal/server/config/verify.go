package config

import (
	"errors"
	"net"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyAuth(&cfg.Auth); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return errors.New("server.http.addr: " + err.Error())
	}

	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	if cfg.HTTP.TLSCertFile != "" {
		if _, err := os.Stat(cfg.HTTP.TLSCertFile); err != nil {
			return errors.New("server.http.tls_cert_file: " + err.Error())
		}
		if _, err := os.Stat(cfg.HTTP.TLSKeyFile); err != nil {
			return errors.New("server.http.tls_key_file: " + err.Error())
		}
	}

	if cfg.RESP.Enabled {
		if _, _, err := net.SplitHostPort(cfg.RESP.Addr); err != nil {
			return errors.New("server.resp.addr: " + err.Error())
		}
		if cfg.RESP.Addr == cfg.HTTP.Addr {
			return errors.New("server.resp.addr conflicts with server.http.addr")
		}
		if (cfg.RESP.TLSCertFile == "") != (cfg.RESP.TLSKeyFile == "") {
			return errors.New("server.resp.tls_cert_file and tls_key_file must be set together")
		}
		if cfg.RESP.TLSCertFile != "" {
			if _, err := os.Stat(cfg.RESP.TLSCertFile); err != nil {
				return errors.New("server.resp.tls_cert_file: " + err.Error())
			}
			if _, err := os.Stat(cfg.RESP.TLSKeyFile); err != nil {
				return errors.New("server.resp.tls_key_file: " + err.Error())
			}
		}
	}

	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.Root == "" {
		return errors.New("storage.root is required")
	}

	// Check if the storage root exists or can be created
	if err := os.MkdirAll(cfg.Root, 0750); err != nil {
		return errors.New("cannot create storage root: " + err.Error())
	}

	if cfg.Snapshots.Enabled {
		if cfg.Snapshots.Interval <= 0 {
			return errors.New("storage.snapshots.interval must be positive")
		}
		if cfg.Snapshots.Keep < 0 {
			return errors.New("storage.snapshots.keep must not be negative")
		}
	}

	return nil
}

func verifyAuth(cfg *AuthSection) error {
	if cfg.BootstrapSecret != "" && len(cfg.BootstrapSecret) < 16 {
		return errors.New("auth.bootstrap_secret must be at least 16 characters")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be one of debug, info, warn, error")
	}
	switch cfg.Format {
	case "", "json", "text":
	default:
		return errors.New("log.format must be json or text")
	}
	return nil
}

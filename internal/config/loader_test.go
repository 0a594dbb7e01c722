package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/calibrate/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	Convey("Given nothing configured", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then the documented defaults should apply", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.Store, ShouldEqual, config.StoreMemory)
			So(cfg.Cache, ShouldEqual, config.CacheMemory)
			So(cfg.ProfileMinSamples, ShouldEqual, 5)
			So(cfg.BaselineMinSamples, ShouldEqual, 3)
			So(cfg.ConsensusMinCoaches, ShouldEqual, 2)
			So(cfg.TrendWindow, ShouldEqual, 5)
			So(cfg.TrendDeadband, ShouldAlmostEqual, 0.75, 1e-9)
			So(cfg.ReadinessWeights.Validate(), ShouldBeNil)
		})
	})
}

func TestLoad_File(t *testing.T) {
	path := writeConfigFile(t, "addr: \":7171\"\nprofile_min_samples: 8\ntrend_window: 10\n")
	t.Setenv("CALIBRATE_CONFIG", path)

	Convey("Given a YAML file layered over the defaults", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then file values should win and the rest stay default", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7171")
			So(cfg.ProfileMinSamples, ShouldEqual, 8)
			So(cfg.TrendWindow, ShouldEqual, 10)
			So(cfg.Cache, ShouldEqual, config.CacheMemory)
		})
	})
}

func TestLoad_Env(t *testing.T) {
	path := writeConfigFile(t, "addr: \":7171\"\n")
	t.Setenv("CALIBRATE_CONFIG", path)
	t.Setenv("CALIBRATE_ADDR", ":9999")
	t.Setenv("CALIBRATE_LOG_LEVEL", "debug")

	Convey("Given env vars layered over a file", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then env should be the highest layer", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9999")
			So(cfg.LogLevel, ShouldEqual, "debug")
		})
	})
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CALIBRATE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	Convey("Given a config path that does not exist", t, func() {
		_, err := config.Load(context.Background())

		Convey("Then loading should fail loudly", func() {
			So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
		})
	})
}

func TestLoad_UnknownStore(t *testing.T) {
	t.Setenv("CALIBRATE_STORE", "cassandra")

	Convey("Given an unknown store backend", t, func() {
		_, err := config.Load(context.Background())

		Convey("Then validation should reject it", func() {
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestLoad_MongoWithoutURI(t *testing.T) {
	t.Setenv("CALIBRATE_STORE", "mongo")

	Convey("Given store=mongo without a URI", t, func() {
		_, err := config.Load(context.Background())

		Convey("Then validation should reject it", func() {
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestLoad_BadConfidenceFloor(t *testing.T) {
	t.Setenv("CALIBRATE_CONFIDENCE_FLOOR", "1.5")

	Convey("Given a confidence floor outside (0,1)", t, func() {
		_, err := config.Load(context.Background())

		Convey("Then validation should reject it", func() {
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestLoad_InvertedHintThresholds(t *testing.T) {
	t.Setenv("CALIBRATE_HINT_NOTICE_SIGMA", "2.0")
	t.Setenv("CALIBRATE_HINT_STRONG_SIGMA", "1.0")

	Convey("Given hint thresholds with strong below notice", t, func() {
		_, err := config.Load(context.Background())

		Convey("Then validation should reject it", func() {
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestLoad_NegativeRecalibrateWorkers(t *testing.T) {
	t.Setenv("CALIBRATE_RECALIBRATE_WORKERS", "-2")

	Convey("Given a negative recalibration worker count", t, func() {
		_, err := config.Load(context.Background())

		Convey("Then validation should reject it", func() {
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestLoad_BadReadinessWeights(t *testing.T) {
	path := writeConfigFile(t, "readiness_weights:\n  technical: 0.9\n  physical: 0.9\n")
	t.Setenv("CALIBRATE_CONFIG", path)

	Convey("Given readiness weights that do not sum to one", t, func() {
		_, err := config.Load(context.Background())

		Convey("Then validation should reject it", func() {
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

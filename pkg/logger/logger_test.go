package logger

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap/zapcore"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(Init(), ShouldBeNil)

		Convey("Get should return a usable logger", func() {
			l := Get()
			So(l, ShouldNotBeNil)
			So(func() { l.Info(context.Background(), "test message", String("k", "v")) }, ShouldNotPanic)
		})

		Convey("Named loggers should log with every field kind", func() {
			l := Named("test")
			So(l, ShouldNotBeNil)
			So(func() {
				l.Warn(context.Background(), "fields",
					Int("i", 1),
					Int64("i64", 2),
					Float64("f", 1.5),
					Any("any", []string{"a"}),
					Error(errors.New("boom")),
				)
			}, ShouldNotPanic)
		})

		Convey("Sync should not fail on standard streams", func() {
			So(Sync(), ShouldBeNil)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(Init(), ShouldBeNil)

		Convey("Known levels should be accepted", func() {
			So(SetLevelString("debug"), ShouldBeNil)
			So(level.Level(), ShouldEqual, zapcore.DebugLevel)
			So(SetLevelString(" WARNING "), ShouldBeNil)
			So(level.Level(), ShouldEqual, zapcore.WarnLevel)
			So(SetLevelString("error"), ShouldBeNil)
			So(level.Level(), ShouldEqual, zapcore.ErrorLevel)
			So(SetLevelString(""), ShouldBeNil)
			So(level.Level(), ShouldEqual, zapcore.InfoLevel)
		})

		Convey("Unknown levels should be rejected", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}

package maplog_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bonebunny/lootledger/internal/adapters/maplog"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCodeToTitle(t *testing.T) {
	Convey("Given area codes from the client log", t, func() {
		cases := map[string]string{
			"MapAzmerianRanges": "Azmerian Ranges",
			"MapBloodwood":      "Bloodwood",
			"MapSandsweptMarsh": "Sandswept Marsh",
			"MapVaalFactory":    "Vaal Factory",
			"HideoutFelled":     "Hideout Felled",
			"MapUberBossArena":  "Uber Boss Arena",
		}

		Convey("Then each becomes a spaced display title", func() {
			for code, want := range cases {
				So(maplog.CodeToTitle(code), ShouldEqual, want)
			}
		})
	})
}

func TestLastMap(t *testing.T) {
	writeLog := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "Client.txt")
		So(os.WriteFile(path, []byte(content), 0o644), ShouldBeNil)
		return path
	}

	Convey("Given a client log with generation lines", t, func() {
		log := "2026/08/30 21:10:00 1234 [INFO Client 1] Generating level 78 area \"MapBloodwood\" with seed 111\n" +
			"2026/08/30 21:12:00 1234 [INFO Client 1] : You have entered Bloodwood.\n" +
			"2026/08/30 21:14:03 1234 [INFO Client 1] Generating level 80 area \"MapAzmerianRanges\" with seed 1234567\n" +
			"2026/08/30 21:14:05 1234 [INFO Client 1] : You have entered Azmerian Ranges.\n"

		Convey("When reading the last map", func() {
			info, err := maplog.LastMap(writeLog(t, log), 1_000_000)

			Convey("Then the most recent generation line wins", func() {
				So(err, ShouldBeNil)
				So(info.Name, ShouldEqual, "Azmerian Ranges")
				So(info.Code, ShouldEqual, "MapAzmerianRanges")
				So(info.Level, ShouldEqual, 80)
				So(info.Seed, ShouldEqual, 1234567)
				So(info.Timestamp, ShouldEqual, "2026/08/30 21:14:03")
			})
		})

		Convey("When the scan window excludes all generation lines", func() {
			_, err := maplog.LastMap(writeLog(t, log), 10)

			Convey("Then no map is found", func() {
				So(errors.Is(err, maplog.ErrNoMapFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given a large log whose only generation line opens the window", t, func() {
		filler := strings.Repeat("2026/08/30 21:15:00 1234 [INFO Client 1] : chatter line\n", 4000)
		log := "2026/08/30 21:14:03 1234 [INFO Client 1] Generating level 80 area \"MapAzmerianRanges\" with seed 1234567\n" +
			filler

		Convey("When the scan window covers the whole file", func() {
			info, err := maplog.LastMap(writeLog(t, log), 1_000_000)

			Convey("Then the full window is read and the line is found", func() {
				So(err, ShouldBeNil)
				So(info.Seed, ShouldEqual, 1234567)
			})
		})
	})

	Convey("Given a log without generation lines", t, func() {
		path := writeLog(t, "2026/08/30 21:12:00 chatter\nmore chatter\n")
		_, err := maplog.LastMap(path, 1_000_000)

		Convey("Then no map is found", func() {
			So(errors.Is(err, maplog.ErrNoMapFound), ShouldBeTrue)
		})
	})

	Convey("Given a missing log file", t, func() {
		_, err := maplog.LastMap(filepath.Join(t.TempDir(), "absent.txt"), 1_000_000)

		Convey("Then the log is reported unreadable", func() {
			So(errors.Is(err, maplog.ErrLogUnreadable), ShouldBeTrue)
		})
	})
}

package overlay_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bonebunny/lootledger/internal/adapters/overlay"
	"github.com/bonebunny/lootledger/internal/domain/session"
	"github.com/bonebunny/lootledger/internal/projection"
	. "github.com/smartystreets/goconvey/convey"
)

// stubController scripts flow responses for the HTTP surface.
type stubController struct {
	beginErr   error
	endErr     error
	sessionErr error
	begun      int
	ended      int
	vars       projection.Vars
}

func (c *stubController) BeginUnit(ctx context.Context) error {
	if c.beginErr != nil {
		return c.beginErr
	}
	c.begun++
	return nil
}

func (c *stubController) EndUnit(ctx context.Context) error {
	if c.endErr != nil {
		return c.endErr
	}
	c.ended++
	return nil
}

func (c *stubController) NewSession(ctx context.Context) (session.Info, error) {
	if c.sessionErr != nil {
		return session.Info{}, c.sessionErr
	}
	return session.Info{SessionID: "sess-1234"}, nil
}

func (c *stubController) Vars() projection.Vars {
	return c.vars
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func TestServerEndpoints(t *testing.T) {
	Convey("Given an overlay server over a stub controller", t, func() {
		ctrl := &stubController{vars: projection.Vars{
			"character":              "BoneBunny",
			"session_maps_completed": 3,
		}}
		srv := overlay.NewServer("127.0.0.1:0", ctrl, overlay.NewHub())
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		get := func(path string) (*http.Response, apiResponse) {
			resp, err := http.Get(ts.URL + path)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var decoded apiResponse
			So(json.NewDecoder(resp.Body).Decode(&decoded), ShouldBeNil)
			return resp, decoded
		}
		post := func(path string) (*http.Response, apiResponse) {
			resp, err := http.Post(ts.URL+path, "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var decoded apiResponse
			So(json.NewDecoder(resp.Body).Decode(&decoded), ShouldBeNil)
			return resp, decoded
		}

		Convey("When reading /vars", func() {
			resp, decoded := get("/vars")

			Convey("Then the current bag comes back", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(decoded.Success, ShouldBeTrue)
				So(string(decoded.Data), ShouldContainSubstring, "BoneBunny")
			})
		})

		Convey("When posting the trigger endpoints", func() {
			resp1, _ := post("/trigger/begin")
			resp2, _ := post("/trigger/end")
			resp3, decoded := post("/trigger/session")

			Convey("Then each drives the controller", func() {
				So(resp1.StatusCode, ShouldEqual, http.StatusOK)
				So(resp2.StatusCode, ShouldEqual, http.StatusOK)
				So(resp3.StatusCode, ShouldEqual, http.StatusOK)
				So(ctrl.begun, ShouldEqual, 1)
				So(ctrl.ended, ShouldEqual, 1)
				So(string(decoded.Data), ShouldContainSubstring, "sess-1234")
			})
		})

		Convey("When a trigger fails in the flow", func() {
			ctrl.endErr = errors.New("no unit in flight")
			resp, decoded := post("/trigger/end")

			Convey("Then the failure maps to a conflict", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				So(decoded.Success, ShouldBeFalse)
				So(decoded.Error, ShouldContainSubstring, "no unit in flight")
			})
		})

		Convey("When triggers are requested with the wrong method", func() {
			resp, err := http.Get(ts.URL + "/trigger/begin")
			So(err, ShouldBeNil)
			resp.Body.Close()

			Convey("Then the route does not match", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
				So(ctrl.begun, ShouldEqual, 0)
			})
		})

		Convey("When checking /healthz", func() {
			resp, decoded := get("/healthz")

			Convey("Then it reports ok", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(decoded.Success, ShouldBeTrue)
			})
		})

		Convey("When loading the index page", func() {
			resp, err := http.Get(ts.URL + "/")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the overlay HTML is served", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldContainSubstring, "text/html")
			})
		})
	})
}

func TestHub(t *testing.T) {
	Convey("Given a hub with a connected client", t, func() {
		hub := overlay.NewHub()
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.ServeWS)
		ts := httptest.NewServer(mux)
		defer ts.Close()

		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("When the flow pushes a variable bag", func() {
			hub.UpdateVars(projection.Vars{"session_maps_completed": 2})

			Convey("Then the client receives it as JSON", func() {
				var got map[string]any
				So(conn.ReadJSON(&got), ShouldBeNil)
				So(got["session_maps_completed"], ShouldEqual, 2.0)
			})
		})

		Convey("When a second client connects after a push", func() {
			hub.UpdateVars(projection.Vars{"session_maps_completed": 5})

			conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			defer conn2.Close()

			Convey("Then it is greeted with the latest bag", func() {
				var got map[string]any
				So(conn2.ReadJSON(&got), ShouldBeNil)
				So(got["session_maps_completed"], ShouldEqual, 5.0)
			})
		})

		Convey("When clients connect while the flow is pushing", func() {
			stop := make(chan struct{})
			var pusher sync.WaitGroup
			pusher.Add(1)
			go func() {
				defer pusher.Done()
				for i := 0; ; i++ {
					select {
					case <-stop:
						return
					default:
						hub.UpdateVars(projection.Vars{"session_maps_completed": i})
					}
				}
			}()

			const joiners = 8
			errs := make(chan error, joiners)
			var clients sync.WaitGroup
			for i := 0; i < joiners; i++ {
				clients.Add(1)
				go func() {
					defer clients.Done()
					c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
					if err != nil {
						errs <- err
						return
					}
					defer c.Close()
					_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
					for n := 0; n < 3; n++ {
						var got map[string]any
						if err := c.ReadJSON(&got); err != nil {
							errs <- err
							return
						}
					}
				}()
			}
			clients.Wait()
			close(stop)
			pusher.Wait()
			close(errs)

			Convey("Then every joiner reads intact frames", func() {
				var failures []error
				for err := range errs {
					failures = append(failures, err)
				}
				So(failures, ShouldBeEmpty)
			})
		})

		Convey("When the hub closes", func() {
			hub.Close()

			Convey("Then the client connection drops", func() {
				So(conn.SetReadDeadline(time.Now().Add(time.Second)), ShouldBeNil)
				var got map[string]any
				So(conn.ReadJSON(&got), ShouldNotBeNil)
			})
		})
	})
}

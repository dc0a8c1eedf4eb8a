// Package api is a service providing an HTTP REST API to inspect and control
// the skill.
//
// The endpoints supported are:
//
// http://localhost:8125/ - landing banner
//
// http://localhost:8125/status - bus and Home Assistant connectivity, uptime
//
// http://localhost:8125/devices - the devices the skill can address
//
// http://localhost:8125/devices/{device} - one device, by entity id or spoken name
//
// http://localhost:8125/devices/rebuild - POST to rebuild the device registry
//
// http://localhost:8125/intents - the intent names currently registered
//
// http://localhost:8125/query/{service}/{verb} - query a service over the message bus
//
// http://localhost:8125/assist - POST free text through to the Assist conversation agent
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/oscillatelabs/hasskill/bus"
	"github.com/oscillatelabs/hasskill/services"
	"github.com/oscillatelabs/hasskill/util"
)

// Service api
type Service struct {
}

// ID of the service
func (self *Service) ID() string {
	return "api"
}

func errorResponse(w http.ResponseWriter, code int, err error) {
	http.Error(w, err.Error(), code)
}

func jsonResponse(w http.ResponseWriter, obj interface{}) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	if err := enc.Encode(obj); err != nil {
		errorResponse(w, http.StatusInternalServerError, err)
	}
}

func apiIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Type", "text/html")
	fmt.Fprintf(w, "<html>hasskill is listening</html>")
}

func apiStatus(w http.ResponseWriter, r *http.Request) {
	conf := services.Config
	ha := bus.Data{
		"host":   conf.Host,
		"socket": services.Socket != nil && services.Socket.Connected(),
	}
	if services.HomeAssistant != nil {
		ha["devices"] = services.HomeAssistant.Len()
		if built := services.HomeAssistant.Built(); !built.IsZero() {
			ha["built"] = built.Format(time.RFC3339)
		}
	}
	jsonResponse(w, bus.Data{
		"service": "hasskill",
		"uptime":  util.ShortDuration(services.Uptime()),
		"bus": bus.Data{
			"url":       conf.Bus.URL,
			"connected": services.Bus != nil && services.Bus.Connected(),
		},
		"homeassistant": ha,
		"intents": bus.Data{
			"disabled": conf.DisableIntents,
			"skill_id": conf.SkillID,
			"lang":     conf.Lang,
		},
	})
}

func apiDevices(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, services.HomeAssistant.Devices())
}

func apiDevicesSingle(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["device"]
	if device, ok := services.HomeAssistant.Get(name); ok {
		jsonResponse(w, device)
		return
	}
	if device, _, ok := services.HomeAssistant.Find(name); ok {
		jsonResponse(w, device)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, "not found: %s", name)
}

func apiDevicesRebuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), services.Config.TimeoutDuration())
	defer cancel()
	if err := services.HomeAssistant.Build(ctx); err != nil {
		errorResponse(w, http.StatusBadGateway, err)
		return
	}
	jsonResponse(w, true)
}

// apiQuery bridges HTTP to the bus query layer, eg
// GET /query/skill/get.device?device=kitchen%20light
func apiQuery(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := bus.Data{}
	for key, values := range r.URL.Query() {
		data[key] = values[0]
	}
	ask(w, bus.NewMessage(vars["service"]+"."+vars["verb"], data))
}

// apiIntents asks the skill service which intents it has registered.
func apiIntents(w http.ResponseWriter, r *http.Request) {
	ask(w, bus.NewMessage("skill.get.intents", bus.Data{}))
}

func ask(w http.ResponseWriter, request *bus.Message) {
	reply, err := services.Ask(request, services.Config.TimeoutDuration())
	if err != nil {
		errorResponse(w, http.StatusGatewayTimeout, err)
		return
	}
	jsonResponse(w, reply.Data)
}

func apiAssist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
		Lang string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Text == "" {
		errorResponse(w, http.StatusBadRequest, errors.New("text required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), services.Config.TimeoutDuration())
	defer cancel()
	speech, err := services.Client.Converse(ctx, req.Text, req.Lang)
	if err != nil {
		errorResponse(w, http.StatusBadGateway, err)
		return
	}
	jsonResponse(w, bus.Data{"speech": speech})
}

func router() *mux.Router {
	router := mux.NewRouter()
	router.Path("/").HandlerFunc(apiIndex)
	router.Path("/status").HandlerFunc(apiStatus)
	router.Path("/devices").HandlerFunc(apiDevices)
	router.Path("/devices/rebuild").Methods("POST").HandlerFunc(apiDevicesRebuild)
	router.Path("/devices/{device}").HandlerFunc(apiDevicesSingle)
	router.Path("/intents").HandlerFunc(apiIntents)
	router.Path("/query/{service}/{verb}").HandlerFunc(apiQuery)
	router.Path("/assist").Methods("POST").HandlerFunc(apiAssist)
	return router
}

type loggingHandler struct {
	Handler http.Handler
}

func (self loggingHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Debugf("%s %s", req.Method, req.RequestURI)
	self.Handler.ServeHTTP(w, req)
}

// handler wraps the router with request logging and CORS. Credentials are
// allowed so the API can be placed behind http auth.
func handler() http.Handler {
	var handler http.Handler = router()
	handler = loggingHandler{Handler: handler}
	return cors.New(cors.Options{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(handler)
}

// Run the service
func (self *Service) Run() error {
	port := services.Config.API.Port
	if port == 0 {
		log.Info("api.port is not configured, API disabled")
		return nil
	}
	addr := fmt.Sprintf(":%d", port)
	log.Infof("Listening on %s", addr)
	return http.ListenAndServe(addr, handler())
}

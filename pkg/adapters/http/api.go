package http

import (
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var openapiSpec []byte

// ServerInterface represents all server handlers of openapi.yaml.
type ServerInterface interface {
	// (GET /status)
	GetStatus(w http.ResponseWriter, r *http.Request)
	// (GET /health)
	CheckHealth(w http.ResponseWriter, r *http.Request)
	// (GET /info)
	GetInfo(w http.ResponseWriter, r *http.Request)
	// (GET /web/diagnostics)
	Diagnostics(w http.ResponseWriter, r *http.Request)
	// (GET /web/network_topology)
	NetworkTopology(w http.ResponseWriter, r *http.Request)
	// (GET /web/transactions/aggregated)
	AggregatedTransactions(w http.ResponseWriter, r *http.Request)
	// (GET /web/transactions/counts)
	TransactionCounts(w http.ResponseWriter, r *http.Request)
	// (GET /web/routes)
	ListRoutes(w http.ResponseWriter, r *http.Request)
	// (GET /web/resolve)
	ResolveRoute(w http.ResponseWriter, r *http.Request, params ResolveRouteParams)
	// (GET /web/views/{view})
	RenderView(w http.ResponseWriter, r *http.Request, view string)
	// (GET /web/events)
	SubscribeEvents(w http.ResponseWriter, r *http.Request)
}

// ResolveRouteParams defines parameters for ResolveRoute.
type ResolveRouteParams struct {
	Fragment *string `form:"fragment,omitempty" json:"fragment,omitempty"`
}

// serverInterfaceWrapper converts HTTP requests to parameters.
type serverInterfaceWrapper struct {
	handler ServerInterface
}

func (siw *serverInterfaceWrapper) ResolveRoute(w http.ResponseWriter, r *http.Request) {
	var params ResolveRouteParams

	err := runtime.BindQueryParameter("form", true, false, "fragment", r.URL.Query(), &params.Fragment)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter fragment: %s", err), http.StatusBadRequest)
		return
	}
	siw.handler.ResolveRoute(w, r, params)
}

func (siw *serverInterfaceWrapper) RenderView(w http.ResponseWriter, r *http.Request) {
	var view string

	err := runtime.BindStyledParameterWithOptions("simple", "view", chi.URLParam(r, "view"), &view,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter view: %s", err), http.StatusBadRequest)
		return
	}
	siw.handler.RenderView(w, r, view)
}

// HandlerFromMux registers the handlers of si on r and returns r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	wrapper := &serverInterfaceWrapper{handler: si}

	r.Get("/status", si.GetStatus)
	r.Get("/health", si.CheckHealth)
	r.Get("/info", si.GetInfo)
	r.Get("/web/diagnostics", si.Diagnostics)
	r.Get("/web/network_topology", si.NetworkTopology)
	r.Get("/web/transactions/aggregated", si.AggregatedTransactions)
	r.Get("/web/transactions/counts", si.TransactionCounts)
	r.Get("/web/routes", si.ListRoutes)
	r.Get("/web/resolve", wrapper.ResolveRoute)
	r.Get("/web/views/{view}", wrapper.RenderView)
	r.Get("/web/events", si.SubscribeEvents)
	return r
}

var (
	swaggerOnce sync.Once
	swagger     *openapi3.T
	swaggerErr  error
)

// GetSwagger returns the parsed and validated OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	swaggerOnce.Do(func() {
		loader := openapi3.NewLoader()
		swagger, swaggerErr = loader.LoadFromData(openapiSpec)
		if swaggerErr != nil {
			swaggerErr = fmt.Errorf("error loading OpenAPI document: %w", swaggerErr)
			return
		}
		if err := swagger.Validate(loader.Context); err != nil {
			swaggerErr = fmt.Errorf("invalid OpenAPI document: %w", err)
		}
	})
	return swagger, swaggerErr
}

// rawSpec returns the OpenAPI document as served.
func rawSpec() []byte {
	return openapiSpec
}

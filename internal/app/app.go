// Package app wires the broker's components into its three external
// interfaces (idaCall, restCall, dataSourceLoader) behind a thin
// gin.Engine: request decode, dispatch to the coordinator, encode
// response.
package app

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kartikbazzad/bunbase/opbridge/internal/config"
	"github.com/kartikbazzad/bunbase/opbridge/internal/connpool"
	"github.com/kartikbazzad/bunbase/opbridge/internal/coordinator"
	"github.com/kartikbazzad/bunbase/opbridge/internal/datasource"
	"github.com/kartikbazzad/bunbase/opbridge/internal/descriptor"
	"github.com/kartikbazzad/bunbase/opbridge/internal/envelope"
	"github.com/kartikbazzad/bunbase/opbridge/internal/operation"
	"github.com/kartikbazzad/bunbase/opbridge/internal/registry"
	"github.com/kartikbazzad/bunbase/opbridge/internal/response"
)

// App holds every wired component and builds the gin.Engine serving
// them.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Conns       *connpool.Manager
	Descriptors *descriptor.Store
	DataSources *datasource.PoolManager
	RPCRegistry *registry.RPC
}

// New builds an App from already-constructed components, so cmd/server
// owns process lifetime (graceful shutdown, signal handling) while App
// owns request handling.
func New(cfg *config.Config, logger *slog.Logger, conns *connpool.Manager, descriptors *descriptor.Store, dataSources *datasource.PoolManager, rpcRegistry *registry.RPC) *App {
	return &App{
		Config:      cfg,
		Logger:      logger,
		Conns:       conns,
		Descriptors: descriptors,
		DataSources: dataSources,
		RPCRegistry: rpcRegistry,
	}
}

// Router builds the gin.Engine exposing three routes.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Any(a.Config.Router.IDACallPath, a.handleIDA)
	r.Any(a.Config.Router.RESTCallPath, a.handleREST)
	r.Any(a.Config.Router.RESTCallPath+"/*path", a.handleREST)
	r.GET(a.Config.Router.DataSourceLoaderPath, a.handleDataSourceLoader)
	return r
}

func (a *App) handleIDA(c *gin.Context) {
	in := a.inputFromRequest(c, "")
	if !in.IsRPCRequest() {
		c.Status(http.StatusBadRequest)
		return
	}

	txn, resubmit, err := envelope.ParseIDA(in)
	if err != nil {
		a.writeParseError(c, response.TransportIDA, err)
		return
	}
	if resubmit {
		a.writeResubmitTrampoline(c, in)
		return
	}
	a.runTransaction(c, txn, transportFor(in))
}

// transportFor selects the IDA (XHR) vs hidden-iframe framing per
// isc_xhr / xmlHttp flag.
func transportFor(in envelope.Input) response.Transport {
	if in.Params["isc_xhr"] == "true" || in.Params["xmlHttp"] == "true" {
		return response.TransportIDA
	}
	return response.TransportHiddenFrame
}

func (a *App) handleREST(c *gin.Context) {
	path := c.Param("path")
	in := a.inputFromRequest(c, path)

	txn, err := envelope.ParseREST(in)
	if err != nil {
		a.writeParseError(c, response.TransportREST, err)
		return
	}
	a.runTransaction(c, txn, response.TransportREST)
}

func (a *App) handleDataSourceLoader(c *gin.Context) {
	ids := strings.Split(c.Query("dataSource"), ",")
	payload, err := registry.BuildDataSourceLoaderPayload(a.Descriptors, ids)
	if err != nil {
		c.String(http.StatusNotFound, "// %s", err.Error())
		return
	}
	c.Data(http.StatusOK, "application/javascript", []byte(payload))
}

func (a *App) inputFromRequest(c *gin.Context, path string) envelope.Input {
	params := map[string]string{}
	for k, vs := range c.Request.URL.Query() {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	if err := c.Request.ParseForm(); err == nil {
		for k, vs := range c.Request.PostForm {
			if len(vs) > 0 {
				params[k] = vs[0]
			}
		}
	}
	body, _ := c.GetRawData()

	reqPath := path
	if reqPath == "" {
		reqPath = c.Request.URL.Path
	}
	return envelope.Input{
		Method:         c.Request.Method,
		Path:           reqPath,
		Params:         params,
		RawBody:        body,
		MetaDataPrefix: "_",
	}
}

// runTransaction drives a parsed Transaction through the operation
// lifecycle and coordinator, then renders the result.
func (a *App) runTransaction(c *gin.Context, txn *envelope.Transaction, transport response.Transport) {
	ops := make([]operation.Operation, 0, len(txn.Operations))
	for _, eop := range txn.Operations {
		switch eop.Kind {
		case envelope.KindDS:
			ops = append(ops, &operation.DSOperation{Envelope: eop, Pool: a.DataSources, Logger: a.Logger})
		default:
			ops = append(ops, &operation.RPCOperation{
				Envelope:          eop,
				Registry:          a.RPCRegistry,
				Logger:            a.Logger,
				IncludeStacktrace: a.Config.RPC.ExceptionStacktrace,
			})
		}
	}

	coord := &coordinator.Coordinator{Operations: ops, TransactionNum: txn.TransactionNum}
	results, err := coord.Run(c.Request.Context())
	if err != nil {
		a.writeParseError(c, transport, err)
		return
	}

	opts := response.Options{
		Format:         a.formatFor(c),
		Transport:      transport,
		TransactionNum: coord.TransactionNum,
		JSCallback:     txn.JSCallback,
	}
	if a.Config.REST.WrapJSONResponses {
		opts.SecurityPrefix = a.Config.REST.JSONPrefix
		opts.SecuritySuffix = a.Config.REST.JSONSuffix
	}
	a.writeRendered(c, results, opts)
}

func (a *App) formatFor(c *gin.Context) response.Format {
	param := a.Config.REST.DynamicDataFormatParam
	if param == "" {
		param = "isc_dataFormat"
	}
	switch c.Query(param) {
	case "xml":
		return response.FormatXML
	default:
		return response.FormatJSON
	}
}

func (a *App) writeRendered(c *gin.Context, results []*operation.Result, opts response.Options) {
	body, contentType, headers, err := response.Render(results, opts)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	for k, v := range headers {
		c.Header(k, v)
	}
	c.Data(http.StatusOK, contentType, body)
}

func (a *App) writeParseError(c *gin.Context, transport response.Transport, err error) {
	results := []*operation.Result{{Status: -1, Data: err.Error()}}
	a.writeRendered(c, results, response.Options{Format: response.FormatJSON, Transport: transport})
}

// writeResubmitTrampoline answers an IDA request whose _transaction was
// empty with the browser-retry trampoline calls for: an HTML
// body invoking parent.isc.RPCManager.retryOperation(window.name).
func (a *App) writeResubmitTrampoline(c *gin.Context, in envelope.Input) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "Thu, 01 Jan 1970 00:00:00 GMT")
	html := "<html><head><script>" +
		"try { document.domain = document.domain; } catch (e) {}\n" +
		"parent.isc.RPCManager.retryOperation(window.name);" +
		"</script></head><body></body></html>"
	c.Data(http.StatusOK, "text/html", []byte(html))
}

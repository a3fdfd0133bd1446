package server

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/x12-mapper/internal/auth"
	"github.com/r9s-ai/x12-mapper/internal/config"
	"github.com/r9s-ai/x12-mapper/internal/logx"
	"github.com/r9s-ai/x12-mapper/pkg/mapping"
	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
	"github.com/r9s-ai/x12-mapper/pkg/requestid"
)

type issueView struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func issueViews(issues []mappingstore.Issue) []issueView {
	out := make([]issueView, 0, len(issues))
	for _, is := range issues {
		msg := ""
		if is.Err != nil {
			msg = is.Err.Error()
		}
		out = append(out, issueView{Path: is.Path, Kind: is.Kind, Message: msg})
	}
	return out
}

func NewRouter(
	cfg *config.Config,
	st *state,
	accessLogger *log.Logger,
	accessLoggerColor bool,
	requestIDHeaderKey string,
	accessFormatter *logx.AccessLogFormatter,
) *gin.Engine {
	resolvedRequestIDHeaderKey := requestid.ResolveHeaderKey(requestIDHeaderKey)
	r := gin.New()
	r.Use(requestIDMiddleware(resolvedRequestIDHeaderKey))
	if cfg.Logging.AccessLog {
		r.Use(requestLoggerWithColor(accessLogger, accessLoggerColor, resolvedRequestIDHeaderKey, accessFormatter))
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	secured := r.Group("/")
	secured.Use(auth.Middleware(cfg.Auth.APIKey))

	secured.POST("/x12-map", makeMapHandler(cfg, st, resolvedRequestIDHeaderKey))
	// Azure Functions style route kept for existing callers.
	secured.POST("/api/x12-map", makeMapHandler(cfg, st, resolvedRequestIDHeaderKey))

	admin := secured.Group("/admin")
	admin.GET("/mappings", func(c *gin.Context) {
		if st.catalog == nil {
			c.JSON(http.StatusOK, gin.H{
				"backend":    cfg.Mappings.Backend,
				"started_at": st.StartedAtUnix(),
				"entries":    []mappingstore.CatalogEntry{},
				"issues":     []issueView{},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"backend":    cfg.Mappings.Backend,
			"dir":        st.catalog.Dir(),
			"started_at": st.StartedAtUnix(),
			"entries":    st.catalog.Entries(),
			"issues":     issueViews(st.catalog.Issues()),
		})
	})
	admin.POST("/mappings/reload", func(c *gin.Context) {
		if st.catalog == nil {
			writeJSONError(c, http.StatusConflict, "input", "mapping catalog is only available for the fs backend")
			return
		}
		res, err := reloadCatalog(c.Request.Context(), st)
		if err != nil {
			log.Printf("reload failed (admin): request_id=%q err=%v", c.GetString(resolvedRequestIDHeaderKey), err)
			writeJSONError(c, http.StatusInternalServerError, "internal", "Failed to reload mappings.")
			return
		}
		log.Printf("reload ok (admin): mappings_dir=%q changed_mappings=%s", st.catalog.Dir(), mappingNamesForLog(res.Changed))
		c.JSON(http.StatusOK, gin.H{
			"entries": res.Entries,
			"changed": res.Changed,
			"issues":  issueViews(res.Issues),
		})
	})
	admin.GET("/mappings/resolved", func(c *gin.Context) {
		p := strings.TrimLeft(strings.TrimSpace(c.Query("path")), "/")
		if p == "" {
			writeJSONError(c, http.StatusBadRequest, "input", "path is required.")
			return
		}
		container := strings.TrimSpace(c.Query("container"))
		if container == "" {
			container = cfg.Mappings.Container
		}
		store, err := st.stores.forContainer(container)
		if err != nil {
			writeMapError(c, resolvedRequestIDHeaderKey, p, err)
			return
		}
		c.Set(ctxMappingPath, p)
		doc, err := mapping.Resolve(c.Request.Context(), store, p, mapping.NewCache())
		if err != nil {
			writeMapError(c, resolvedRequestIDHeaderKey, p, err)
			return
		}
		writeIndentedJSON(c, http.StatusOK, doc)
	})

	return r
}

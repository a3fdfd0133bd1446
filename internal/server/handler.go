package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/x12-mapper/internal/config"
	"github.com/r9s-ai/x12-mapper/pkg/mapengine"
	"github.com/r9s-ai/x12-mapper/pkg/mapping"
	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
	"github.com/r9s-ai/x12-mapper/pkg/maperr"
	"github.com/r9s-ai/x12-mapper/pkg/requestid"
)

// Gin context keys read back by the access logger.
const (
	ctxMappingPath    = "x12.mapping_path"
	ctxTransactionSet = "x12.transaction_set"
	ctxClient         = "x12.client"
	ctxSegmentCount   = "x12.segment_count"
	ctxErrorKind      = "x12.error_kind"
)

type mapResponseMeta struct {
	MappingPath  string         `json:"mappingPath"`
	SegmentCount int            `json:"segmentCount"`
	Output       map[string]any `json:"output"`
}

func makeMapHandler(cfg *config.Config, st *state, requestIDHeaderKey string) gin.HandlerFunc {
	requestIDHeaderKey = requestid.ResolveHeaderKey(requestIDHeaderKey)
	return func(c *gin.Context) {
		body, err := readBody(c, cfg.Server.MaxBodyBytes)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.Set(ctxErrorKind, "input")
				writeJSONError(c, http.StatusRequestEntityTooLarge, "input", "Request body too large.")
				return
			}
			writeMapError(c, requestIDHeaderKey, "", err)
			return
		}

		req, err := parseMapRequest(body)
		if err != nil {
			writeMapError(c, requestIDHeaderKey, "", err)
			return
		}
		if req.TransactionSet != "" {
			c.Set(ctxTransactionSet, req.TransactionSet)
		}
		if req.Client != "" {
			c.Set(ctxClient, req.Client)
		}
		c.Set(ctxSegmentCount, len(req.Segments))

		store, mappingPath, err := selectMapping(cfg, st.stores, req)
		if err != nil {
			writeMapError(c, requestIDHeaderKey, mappingPath, err)
			return
		}
		c.Set(ctxMappingPath, mappingPath)

		doc, err := mapping.Resolve(c.Request.Context(), store, mappingPath, mapping.NewCache())
		if err != nil {
			writeMapError(c, requestIDHeaderKey, mappingPath, err)
			return
		}
		out := mapengine.Apply(req.Segments, doc)

		if req.IncludeMeta {
			writeIndentedJSON(c, http.StatusOK, mapResponseMeta{
				MappingPath:  mappingPath,
				SegmentCount: len(req.Segments),
				Output:       out,
			})
			return
		}
		writeIndentedJSON(c, http.StatusOK, out)
	}
}

func readBody(c *gin.Context, limit int64) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	r := io.Reader(c.Request.Body)
	if limit > 0 {
		r = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	return io.ReadAll(r)
}

// selectMapping picks the store and document path for req: an explicit blob
// URL first, then mappingPath, then the transaction set convention.
func selectMapping(cfg *config.Config, stores *storeProvider, req *mapRequest) (mapping.Store, string, error) {
	if strings.TrimSpace(req.MappingBlobURL) != "" {
		loc, err := mappingstore.ParseBlobURL(req.MappingBlobURL)
		if err != nil {
			return nil, "", err
		}
		store, err := stores.forBlob(loc)
		if err != nil {
			return nil, loc.BlobPath, err
		}
		return store, loc.BlobPath, nil
	}

	root := req.MappingRoot
	if root == "" {
		root = cfg.Mappings.Root
	}
	var p string
	switch {
	case strings.TrimSpace(req.MappingPath) != "":
		p = mappingstore.ApplyRoot(strings.TrimLeft(strings.TrimSpace(req.MappingPath), "/"), root)
	case strings.TrimSpace(req.TransactionSet) != "":
		p = mappingstore.DefaultPath(root, strings.TrimSpace(req.Client), strings.TrimSpace(req.TransactionSet))
	default:
		return nil, "", maperr.Input("", "transactionSet or mappingPath is required.")
	}

	container := req.MappingContainer
	if container == "" {
		container = cfg.Mappings.Container
	}
	store, err := stores.forContainer(container)
	if err != nil {
		return nil, p, err
	}
	return store, p, nil
}

// writeMapError maps err onto a status code. Caller mistakes are echoed
// back; mapping and internal failures are logged and answered generically.
func writeMapError(c *gin.Context, requestIDHeaderKey, mappingPath string, err error) {
	kind := maperr.Kind(err)
	c.Set(ctxErrorKind, kind)
	switch kind {
	case "input":
		writeJSONError(c, http.StatusBadRequest, kind, inputMessage(err))
	case "not_found":
		writeJSONError(c, http.StatusNotFound, kind, "Mapping file not found.")
	case "cycle":
		var ce *maperr.CycleError
		msg := "extends cycle"
		if errors.As(err, &ce) {
			msg = ce.Error()
		}
		writeJSONError(c, http.StatusUnprocessableEntity, kind, msg)
	default:
		log.Printf("x12-map failed: request_id=%q mapping_path=%q kind=%s err=%v", c.GetString(requestIDHeaderKey), mappingPath, kind, err)
		writeJSONError(c, http.StatusInternalServerError, kind, "Failed to map X12 payload.")
	}
}

func inputMessage(err error) string {
	var ie *maperr.InputError
	if errors.As(err, &ie) {
		return ie.Error()
	}
	return err.Error()
}

func writeJSONError(c *gin.Context, status int, kind, msg string) {
	writeIndentedJSON(c, status, gin.H{
		"error": gin.H{
			"message": msg,
			"kind":    kind,
		},
	})
}

func writeIndentedJSON(c *gin.Context, status int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("encode response failed: err=%v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", b)
}

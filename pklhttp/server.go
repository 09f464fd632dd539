// Package pklhttp serves pickle decoding over HTTP.
package pklhttp

import (
	"bytes"
	"context"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"ricklepick.dev/ricklepick/pklhist"
	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pvm"
)

// MaxBodySize is the largest stream accepted in a request.
const MaxBodySize = 64 << 20

func Serve(ctx context.Context, l net.Listener, reg *pvm.Registry, hist *pklhist.Store) error {
	return New(reg, hist).Serve(ctx, l)
}

//go:embed view/*
var viewFS embed.FS

type Server struct {
	reg   *pvm.Registry
	hist  *pklhist.Store
	app   *fiber.App
	bgCtx context.Context
}

// New creates a Server which decodes with the extensions in reg.
// If hist is not nil, every decode is recorded in it.
func New(reg *pvm.Registry, hist *pklhist.Store) *Server {
	s := &Server{reg: reg, hist: hist, bgCtx: context.Background()}

	renderer := html.NewFileSystem(http.FS(viewFS), ".html")
	renderer.AddFunc("hexDump", func(x []byte) string {
		return hex.Dump(x)
	})
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Views:                 renderer,
		BodyLimit:             MaxBodySize,
	})
	// views
	app.Get("/", s.home)
	app.Post("/decode", s.postDecode)

	v1 := app.Group("/v1")
	v1.Post("/decode", s.decode)
	v1.Post("/dis", s.dis)
	v1.Get("/ws", websocket.New(s.handleWS))
	v1.Get("/history", s.history)
	s.app = app
	return s
}

func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.bgCtx = ctx
	logctx.Infof(ctx, "serving on %v", l.Addr())
	return s.app.Listener(l)
}

// Test sends req to the server without a listener.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req, -1)
}

func (s *Server) options() []pvm.Option {
	return []pvm.Option{pvm.WithContext(s.bgCtx), pvm.WithRegistry(s.reg)}
}

// decodeBytes decodes data and records the outcome.
func (s *Server) decodeBytes(data []byte) (pklmem.Value, error) {
	x, err := pvm.DecodeBytes(s.bgCtx, data, s.options()...)
	if s.hist != nil {
		if _, herr := s.hist.Record(s.bgCtx, data, x, err); herr != nil {
			logctx.Error(s.bgCtx, "recording decode", zap.Error(herr))
		}
	}
	return x, err
}

func (s *Server) home(c *fiber.Ctx) error {
	return c.Render("view/home", struct {
		Hostname string
	}{
		Hostname: c.Hostname(),
	}, "view/layout")
}

type decodeResult struct {
	Name    string
	Kind    string
	Pretty  string
	Listing string
	Error   string
	Raw     []byte
}

// postDecode handles the upload form on the home page.
func (s *Server) postDecode(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	res := decodeResult{Name: fh.Filename, Raw: data}
	if x, err := s.decodeBytes(data); err != nil {
		res.Error = err.Error()
	} else {
		res.Kind = x.Kind().String()
		res.Pretty = pklmem.Pretty(x)
	}
	var listing bytes.Buffer
	if err := pvm.Disassemble(&listing, bytes.NewReader(data), s.options()...); err != nil {
		fmt.Fprintf(&listing, "%v\n", err)
	}
	res.Listing = listing.String()
	return c.Render("view/result", res, "view/layout")
}

// decode handles a stream in the request body.
// The format query parameter selects json (the default), pretty, or repr.
func (s *Server) decode(c *fiber.Ctx) error {
	x, err := s.decodeBytes(c.Body())
	if err != nil {
		return writeError(c, err)
	}
	switch format := c.Query("format", "json"); format {
	case "json":
		data, err := pklmem.ToJSON(x)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(data)
	case "pretty":
		return c.SendString(pklmem.Pretty(x))
	case "repr":
		return c.SendString(x.String())
	default:
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

func (s *Server) dis(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := pvm.Disassemble(&buf, bytes.NewReader(c.Body()), s.options()...); err != nil {
		return writeError(c, err)
	}
	return c.SendString(buf.String())
}

// history lists recorded decodes, newest first.
func (s *Server) history(c *fiber.Ctx) error {
	if s.hist == nil {
		return fiber.NewError(fiber.StatusNotFound, "history is not enabled")
	}
	limit := c.QueryInt("limit", 100)
	if limit <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be positive")
	}
	ents, err := s.hist.List(s.bgCtx, limit)
	if err != nil {
		return err
	}
	return c.JSON(ents)
}

// ErrorResponse is the body of a failed decode.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Op     string `json:"op,omitempty"`
	Offset int64  `json:"offset"`
}

func makeErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error(), Offset: -1}
	if k := pvm.KindOf(err); k != nil {
		resp.Kind = k.Error()
	}
	var perr *pvm.Error
	if errors.As(err, &perr) {
		resp.Offset = perr.Offset
		if perr.HasOp {
			resp.Op = perr.Op.String()
		}
	}
	return resp
}

func writeError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(makeErrorResponse(err))
}

// WSResult is sent for each stream received on the websocket.
type WSResult struct {
	Pretty string         `json:"pretty,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// handleWS decodes each binary message as a stream, replying with a WSResult.
func (s *Server) handleWS(c *websocket.Conn) {
	ctx := s.bgCtx
	logctx.Info(ctx, "started websocket", zap.Stringer("remote", c.RemoteAddr()))
	defer logctx.Info(ctx, "closing websocket", zap.Stringer("remote", c.RemoteAddr()))
	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logctx.Error(ctx, "reading websocket", zap.Error(err))
			}
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		var res WSResult
		if x, err := s.decodeBytes(data); err != nil {
			er := makeErrorResponse(err)
			res.Error = &er
		} else {
			res.Pretty = pklmem.Pretty(x)
		}
		if err := c.WriteJSON(res); err != nil {
			logctx.Error(ctx, "writing websocket", zap.Error(err))
			return
		}
	}
}

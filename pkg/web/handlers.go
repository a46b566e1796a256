package web

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-tello/pkg/drone"
	"github.com/teslashibe/go-tello/pkg/hub"
	"github.com/teslashibe/go-tello/pkg/mjpeg"
	"github.com/teslashibe/go-tello/pkg/phrase"
	"github.com/teslashibe/go-tello/pkg/snapshot"
)

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Command string `json:"command"`
}

// PhraseRequest is the body of POST /api/phrase.
type PhraseRequest struct {
	Text string `json:"text"`
}

// PictureResponse is the body of a successful POST /api/picture.
type PictureResponse struct {
	Path string `json:"path"`
}

// CommandResponse reports the outcome of a command.
type CommandResponse struct {
	OK      bool   `json:"ok"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusCode maps a command error to an HTTP status.
func statusCode(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, drone.ErrUnsupportedCommand):
		return fiber.StatusBadRequest
	case errors.Is(err, drone.ErrNotStarted):
		return fiber.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusBadGateway
	}
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(indexHTML)
}

// handleVideo streams frames as multipart/x-mixed-replace until the client
// goes away, the frame feed ends or the server shuts down.
func (s *Server) handleVideo(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, mjpeg.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	c.Set("Pragma", "no-cache")

	frames, unsubscribe := s.ctrl.Subscribe(4)
	done := s.ctx.Done()
	logger := s.logger

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		mw := mjpeg.NewWriter(w)
		sent := 0

		for {
			select {
			case <-done:
				return
			case jpeg, ok := <-frames:
				if !ok {
					return
				}
				if err := mw.WriteFrame(jpeg); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					logger.Debug("video client gone", "frames", sent)
					return
				}
				sent++
			}
		}
	})
	return nil
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	jpeg, err := s.ctrl.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(jpeg)
}

// handlePicture saves the latest frame into the picture directory.
func (s *Server) handlePicture(c *fiber.Ctx) error {
	if !s.cfg.Pictures.Enabled() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": snapshot.ErrDisabled.Error(),
		})
	}

	jpeg, err := s.ctrl.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	path, err := s.cfg.Pictures.Save(jpeg)
	if err != nil {
		s.logger.Error("save picture", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	s.logger.Info("picture saved", "path", path)
	return c.Status(fiber.StatusCreated).JSON(PictureResponse{Path: path})
}

func (s *Server) handleListCommands(c *fiber.Ctx) error {
	return c.JSON(drone.Literals())
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.History().Records())
}

// handleCommand runs one literal command such as "forward".
func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(CommandResponse{Error: "invalid request body"})
	}

	err := s.ctrl.ExecuteString(c.UserContext(), req.Command)
	return s.respond(c, req.Command, err)
}

// handlePhrase parses a sentence such as "go forward two meters".
func (s *Server) handlePhrase(c *fiber.Ctx) error {
	var req PhraseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(CommandResponse{Error: "invalid request body"})
	}

	cmd, err := phrase.Parse(req.Text)
	if err != nil {
		s.logger.Info("phrase not understood", "text", req.Text)
		return s.respond(c, "", err)
	}

	err = s.ctrl.Execute(c.UserContext(), cmd)
	return s.respond(c, cmd.String(), err)
}

func (s *Server) respond(c *fiber.Ctx, command string, err error) error {
	resp := CommandResponse{OK: err == nil, Command: command}
	if err != nil {
		resp.Error = err.Error()
	}
	return c.Status(statusCode(err)).JSON(resp)
}

// runText executes a websocket command: a literal command if it is one,
// otherwise a phrase.
func (s *Server) runText(ctx context.Context, text string) CommandResponse {
	text = strings.TrimSpace(text)

	var (
		name string
		err  error
	)
	if _, perr := drone.Parse(text); perr == nil {
		name = text
		err = s.ctrl.ExecuteString(ctx, text)
	} else if cmd, perr := phrase.Parse(text); perr == nil {
		name = cmd.String()
		err = s.ctrl.Execute(ctx, cmd)
	} else {
		err = perr
	}

	resp := CommandResponse{OK: err == nil, Command: name}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// handleCameraWS pushes every JPEG frame as a binary message.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}

// handleStatusWS sends the current status, then periodic updates.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if err := c.WriteJSON(s.ctrl.Status()); err != nil {
		return
	}
	hub.NewClient(s.statusHub, c).Run()
}

// handleCommandWS reads text commands and answers each with a
// CommandResponse.
func (s *Server) handleCommandWS(c *websocket.Conn) {
	for {
		mt, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		resp := s.runText(s.ctx, string(msg))
		if err := c.WriteJSON(resp); err != nil {
			return
		}
	}
}

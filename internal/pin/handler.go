package pin

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/waply/waply-web/internal/session"
	"github.com/waply/waply-web/internal/upstream"
	"github.com/waply/waply-web/internal/web"
)

const (
	msgWrongPin     = "Incorrect PIN. Please try again."
	msgVerifyFailed = "An error occurred. Please try again."
	msgSetFailed    = "An error occurred while setting your PIN."
)

// keypadKeys is the keypad layout, top-left to bottom-right. The clear key
// is appended by the template.
var keypadKeys = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", ".", "0"}

// Handler serves the PIN status redirector and the enter/set PIN pages.
type Handler struct {
	api      upstream.API
	sessions *session.Store
	render   *web.Renderer
	logger   *slog.Logger
}

// NewHandler wires the PIN flow handler.
func NewHandler(api upstream.API, sessions *session.Store, render *web.Renderer, logger *slog.Logger) *Handler {
	return &Handler{api: api, sessions: sessions, render: render, logger: logger}
}

// Status resolves the identifier's PIN state and redirects to the matching
// flow, forwarding profile fields as query parameters. Every failure,
// including a missing identifier, lands on the generic error page without
// leaking why.
func (h *Handler) Status(c *fiber.Ctx) error {
	urlID := c.Params("urlId")
	if urlID == "" {
		return c.Redirect("/error", http.StatusFound)
	}

	status, err := h.api.CheckPinStatus(c.UserContext(), urlID)
	if err != nil {
		h.logger.Error("check pin status", "url_id", urlID, "error", err)
		return c.Redirect("/error", http.StatusFound)
	}

	q := url.Values{}
	q.Set("profileName", status.User.ProfileName)
	q.Set("phoneNumber", status.User.PhoneNumber)
	q.Set("role", status.User.Role)
	q.Set("timezone", status.User.Timezone)

	target := "/set-pin/"
	if status.IsPinSet {
		target = "/enter-pin/"
	}
	return c.Redirect(target+url.PathEscape(urlID)+"?"+q.Encode(), http.StatusFound)
}

type enterPinView struct {
	ProfileName  string
	Slots        [Slots]string
	Keys         []string
	KeyAction    string
	ErrorMessage string
}

// EnterPinPage renders the keypad with the session's current buffer.
func (h *Handler) EnterPinPage(c *fiber.Ctx) error {
	sid, _ := c.Locals(session.LocalsKey).(string)
	digits, err := h.sessions.PinBuffer(c.UserContext(), sid)
	if err != nil {
		h.logger.Error("load pin buffer", "error", err)
	}
	return h.renderKeypad(c, ParseBuffer(digits), "")
}

// Keypress applies one keypad press to the session buffer. Filling the
// fourth slot submits the code for verification immediately; there is no
// separate submit action.
func (h *Handler) Keypress(c *fiber.Ctx) error {
	sid, _ := c.Locals(session.LocalsKey).(string)
	urlID := c.Params("urlId")

	digits, err := h.sessions.PinBuffer(c.UserContext(), sid)
	if err != nil {
		h.logger.Error("load pin buffer", "error", err)
	}
	buf := ParseBuffer(digits)

	key := c.FormValue("key")
	if key == "clear" {
		buf = buf.Clear()
	} else if len(key) == 1 {
		buf = buf.Press(rune(key[0]))
	}

	if !buf.Complete() {
		if err := h.sessions.SavePinBuffer(c.UserContext(), sid, buf.String()); err != nil {
			h.logger.Error("save pin buffer", "error", err)
		}
		return h.renderKeypad(c, buf, "")
	}

	return h.verify(c, sid, urlID, buf)
}

// verify submits the completed code. Success stores the token and moves to
// the events view; any failure clears the buffer and returns to entry.
func (h *Handler) verify(c *fiber.Ctx, sid, urlID string, buf Buffer) error {
	token, err := h.api.Login(c.UserContext(), urlID, buf.Code())

	if clearErr := h.sessions.ClearPinBuffer(c.UserContext(), sid); clearErr != nil {
		h.logger.Error("clear pin buffer", "error", clearErr)
	}

	if err != nil {
		msg := msgVerifyFailed
		if errors.Is(err, upstream.ErrWrongPin) {
			msg = msgWrongPin
		} else {
			h.logger.Error("verify pin", "url_id", urlID, "error", err)
		}
		return h.renderKeypad(c, Buffer{}, msg)
	}

	if err := h.sessions.SetToken(c.UserContext(), sid, token); err != nil {
		h.logger.Error("store token", "error", err)
		return h.renderKeypad(c, Buffer{}, msgVerifyFailed)
	}

	return c.Redirect("/events/"+url.PathEscape(urlID), http.StatusFound)
}

func (h *Handler) renderKeypad(c *fiber.Ctx, buf Buffer, errMsg string) error {
	name := c.Query("profileName")
	if name == "" {
		name = "User"
	}
	view := enterPinView{
		ProfileName:  name,
		Slots:        buf.SlotValues(),
		Keys:         keypadKeys,
		KeyAction:    keyActionPath(c),
		ErrorMessage: errMsg,
	}
	return h.render.Render(c, http.StatusOK, "enter_pin", view)
}

// keyActionPath preserves the profile query so re-renders keep the greeting.
func keyActionPath(c *fiber.Ctx) string {
	path := "/enter-pin/" + url.PathEscape(c.Params("urlId")) + "/key"
	if q := string(c.Request().URI().QueryString()); q != "" {
		path += "?" + q
	}
	return path
}

type setPinView struct {
	PIN          string
	ConfirmPIN   string
	Action       string
	ErrorMessage string
}

// SetPinPage renders the empty PIN setup form.
func (h *Handler) SetPinPage(c *fiber.Ctx) error {
	return h.render.Render(c, http.StatusOK, "set_pin", setPinView{Action: setActionPath(c)})
}

// SetPinSubmit validates both buffers and stores the new PIN upstream. The
// entered values are retained on every failure; only a successful set
// navigates back to the status check.
func (h *Handler) SetPinSubmit(c *fiber.Ctx) error {
	urlID := c.Params("urlId")
	form := SetForm{PIN: c.FormValue("pin"), Confirm: c.FormValue("confirmPin")}

	view := setPinView{PIN: form.PIN, ConfirmPIN: form.Confirm, Action: setActionPath(c)}

	if err := CheckDigits(form.PIN); err != nil {
		view.ErrorMessage = err.Error()
		return h.render.Render(c, http.StatusOK, "set_pin", view)
	}
	if err := CheckDigits(form.Confirm); err != nil {
		view.ErrorMessage = err.Error()
		return h.render.Render(c, http.StatusOK, "set_pin", view)
	}
	if err := form.Validate(); err != nil {
		view.ErrorMessage = err.Error()
		return h.render.Render(c, http.StatusOK, "set_pin", view)
	}

	if err := h.api.SetPin(c.UserContext(), urlID, form.PIN); err != nil {
		h.logger.Error("set pin", "url_id", urlID, "error", err)
		view.ErrorMessage = msgSetFailed
		return h.render.Render(c, http.StatusOK, "set_pin", view)
	}

	return c.Redirect("/"+url.PathEscape(urlID), http.StatusFound)
}

func setActionPath(c *fiber.Ctx) string {
	path := "/set-pin/" + url.PathEscape(c.Params("urlId"))
	if q := string(c.Request().URI().QueryString()); q != "" {
		path += "?" + q
	}
	return path
}

// ErrorPage renders the generic error destination.
func (h *Handler) ErrorPage(c *fiber.Ctx) error {
	return h.render.Render(c, http.StatusOK, "error", nil)
}

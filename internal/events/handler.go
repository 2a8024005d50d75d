package events

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/waply/waply-web/internal/session"
	"github.com/waply/waply-web/internal/upstream"
	"github.com/waply/waply-web/internal/web"
)

const listPage = 1

const (
	msgFetchFailed  = "Could not refresh events. Showing the last loaded list."
	msgUpdateFailed = "Could not update the event. Please try again."
	msgDeleteFailed = "Could not delete the event. Please try again."
	noticeUpdated   = "Event updated."
	noticeDeleted   = "Event deleted."
)

// frequencies are the recurrence options offered by the edit form.
var frequencies = []string{"once", "hourly", "daily", "weekly", "monthly", RecurrenceCustom}

// Handler serves the reminder list and its edit/update/delete workflow.
type Handler struct {
	api      upstream.API
	sessions *session.Store
	render   *web.Renderer
	logger   *slog.Logger
	now      func() time.Time
	loc      *time.Location
}

// NewHandler wires the events handler.
func NewHandler(api upstream.API, sessions *session.Store, render *web.Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		api:      api,
		sessions: sessions,
		render:   render,
		logger:   logger,
		now:      time.Now,
		loc:      time.Local,
	}
}

type itemView struct {
	ID        string
	Title     string
	TimeRange string
}

type groupView struct {
	Label string
	Items []itemView
}

type listView struct {
	BasePath     string
	FilterParam  string
	RangeLabel   string
	Filters      []Filter
	Notice       string
	ErrorMessage string
	Groups       []groupView
	Items        []itemView
}

// List fetches reminders for the active filter and renders the grouped view.
// A failed fetch keeps the session's last good list on screen instead of
// clearing it.
func (h *Handler) List(c *fiber.Ctx) error {
	sid, _ := c.Locals(session.LocalsKey).(string)
	urlID := c.Params("urlId")

	token, err := h.sessions.Token(c.UserContext(), sid)
	if err != nil {
		h.logger.Error("load token", "error", err)
	}
	if token == "" {
		return c.Redirect("/"+url.PathEscape(urlID), http.StatusFound)
	}

	// Navigating back to the list closes any open edit.
	if err := h.sessions.ClearEditSnapshot(c.UserContext(), sid); err != nil {
		h.logger.Error("close edit", "error", err)
	}

	filter := ParseFilter(c.Query("filter"))
	reminders, fetchErr := h.fetch(c, sid, token, filter)

	view := listView{
		BasePath:    "/events/" + url.PathEscape(urlID),
		FilterParam: filter.Param(),
		RangeLabel:  RangeFor(filter, h.now()).Label(),
		Filters:     []Filter{FilterToday, FilterWeek, FilterMonth},
		Notice:      noticeFor(c.Query("notice")),
	}
	if fetchErr != nil {
		view.ErrorMessage = msgFetchFailed
	}

	if filter == FilterToday {
		view.Items = h.items(reminders)
	} else {
		for _, g := range GroupByDate(reminders, h.loc) {
			view.Groups = append(view.Groups, groupView{Label: g.Label(), Items: h.items(g.Items)})
		}
	}

	return h.render.Render(c, http.StatusOK, "events", view)
}

// fetch performs the filter-keyed re-fetch with at most one request in
// flight per (session, filter). On any failure it falls back to the cached
// list and reports the error so the page can say so.
func (h *Handler) fetch(c *fiber.Ctx, sid, token string, filter Filter) ([]upstream.Reminder, error) {
	key := filter.BackendParam()

	acquired, guardErr := h.sessions.BeginFetch(c.UserContext(), sid, key)
	if guardErr != nil {
		// Fail open: a broken guard must not block refreshes.
		h.logger.Error("fetch guard", "error", guardErr)
		acquired = true
	}
	if !acquired {
		// A fetch for this key is already in flight; render stale data
		// without an error banner.
		cached, _, err := h.sessions.Reminders(c.UserContext(), sid)
		if err != nil {
			h.logger.Error("load cached reminders", "error", err)
		}
		return cached, nil
	}
	defer h.sessions.EndFetch(c.UserContext(), sid, key)

	reminders, err := h.api.ListReminders(c.UserContext(), token, listPage, key)
	if err == nil {
		if saveErr := h.sessions.SaveReminders(c.UserContext(), sid, reminders); saveErr != nil {
			h.logger.Error("cache reminders", "error", saveErr)
		}
		return reminders, nil
	}
	h.logger.Error("fetch reminders", "filter", key, "error", err)

	cached, _, cacheErr := h.sessions.Reminders(c.UserContext(), sid)
	if cacheErr != nil {
		h.logger.Error("load cached reminders", "error", cacheErr)
	}
	return cached, err
}

func (h *Handler) items(reminders []upstream.Reminder) []itemView {
	out := make([]itemView, 0, len(reminders))
	for _, r := range reminders {
		start, end := Window(r)
		out = append(out, itemView{
			ID:        r.ID,
			Title:     TruncateTitle(r.TaskDescription),
			TimeRange: FormatTimeRange(start.In(h.loc), end.In(h.loc)),
		})
	}
	return out
}

func noticeFor(param string) string {
	switch param {
	case "updated":
		return noticeUpdated
	case "deleted":
		return noticeDeleted
	default:
		return ""
	}
}

type editView struct {
	BasePath     string
	Filter       string
	Form         FormData
	Frequencies  []string
	UpdateAction string
	DeleteAction string
	ErrorMessage string
}

// EditOpen seeds the edit buffer from the selected reminder, records the
// snapshot the is-edited comparison runs against, and renders the form.
func (h *Handler) EditOpen(c *fiber.Ctx) error {
	sid, _ := c.Locals(session.LocalsKey).(string)
	urlID := c.Params("urlId")
	id := c.Params("id")

	reminder, ok, err := h.findReminder(c, sid, id)
	if err != nil {
		h.logger.Error("open edit", "reminder_id", id, "error", err)
	}
	if !ok {
		return c.Redirect(h.listPath(urlID, c.Query("filter"), ""), http.StatusFound)
	}

	form := NewFormData(reminder, h.loc)
	snapshot, err := form.Snapshot()
	if err != nil {
		h.logger.Error("snapshot form", "reminder_id", id, "error", err)
		return c.Redirect(h.listPath(urlID, c.Query("filter"), ""), http.StatusFound)
	}
	if err := h.sessions.SaveEditSnapshot(c.UserContext(), sid, session.EditSnapshot{ReminderID: id, Form: snapshot}); err != nil {
		h.logger.Error("save edit snapshot", "error", err)
	}

	return h.renderEdit(c, urlID, id, form, "")
}

// Update applies the edit. An unchanged form never reaches the network; a
// successful update patches the cached list in place rather than
// re-fetching.
func (h *Handler) Update(c *fiber.Ctx) error {
	sid, _ := c.Locals(session.LocalsKey).(string)
	urlID := c.Params("urlId")
	id := c.Params("id")

	form := formFromRequest(c)

	snap, open, err := h.sessions.LoadEditSnapshot(c.UserContext(), sid)
	if err != nil {
		h.logger.Error("load edit snapshot", "error", err)
	}
	if !open || snap.ReminderID != id {
		return c.Redirect(h.listPath(urlID, c.Query("filter"), ""), http.StatusFound)
	}

	if !form.IsEdited(snap.Form) {
		return h.renderEdit(c, urlID, id, form, "")
	}

	token, err := h.sessions.Token(c.UserContext(), sid)
	if err != nil {
		h.logger.Error("load token", "error", err)
	}
	if token == "" {
		return c.Redirect("/"+url.PathEscape(urlID), http.StatusFound)
	}

	if err := h.api.UpdateReminder(c.UserContext(), token, id, form.UserInput(), form.IsMeeting()); err != nil {
		h.logger.Error("update reminder", "reminder_id", id, "error", err)
		return h.renderEdit(c, urlID, id, form, msgUpdateFailed)
	}

	if cached, ok, err := h.sessions.Reminders(c.UserContext(), sid); err == nil && ok {
		patched := ApplyUpdate(cached, id, form, h.loc)
		if err := h.sessions.SaveReminders(c.UserContext(), sid, patched); err != nil {
			h.logger.Error("cache patched reminders", "error", err)
		}
	}
	if err := h.sessions.ClearEditSnapshot(c.UserContext(), sid); err != nil {
		h.logger.Error("close edit", "error", err)
	}

	return c.Redirect(h.listPath(urlID, c.Query("filter"), "updated"), http.StatusFound)
}

// Delete removes the reminder, available whether or not the form was edited.
func (h *Handler) Delete(c *fiber.Ctx) error {
	sid, _ := c.Locals(session.LocalsKey).(string)
	urlID := c.Params("urlId")
	id := c.Params("id")

	form := formFromRequest(c)

	token, err := h.sessions.Token(c.UserContext(), sid)
	if err != nil {
		h.logger.Error("load token", "error", err)
	}
	if token == "" {
		return c.Redirect("/"+url.PathEscape(urlID), http.StatusFound)
	}

	if err := h.api.DeleteReminder(c.UserContext(), token, id, form.IsMeeting()); err != nil {
		h.logger.Error("delete reminder", "reminder_id", id, "error", err)
		return h.renderEdit(c, urlID, id, form, msgDeleteFailed)
	}

	if cached, ok, err := h.sessions.Reminders(c.UserContext(), sid); err == nil && ok {
		if err := h.sessions.SaveReminders(c.UserContext(), sid, Remove(cached, id)); err != nil {
			h.logger.Error("cache reminders", "error", err)
		}
	}
	if err := h.sessions.ClearEditSnapshot(c.UserContext(), sid); err != nil {
		h.logger.Error("close edit", "error", err)
	}

	return c.Redirect(h.listPath(urlID, c.Query("filter"), "deleted"), http.StatusFound)
}

// findReminder looks the reminder up in the session's cached list.
func (h *Handler) findReminder(c *fiber.Ctx, sid, id string) (upstream.Reminder, bool, error) {
	cached, ok, err := h.sessions.Reminders(c.UserContext(), sid)
	if err != nil || !ok {
		return upstream.Reminder{}, false, err
	}
	for _, r := range cached {
		if r.ID == id {
			return r, true, nil
		}
	}
	return upstream.Reminder{}, false, nil
}

func (h *Handler) renderEdit(c *fiber.Ctx, urlID, id string, form FormData, errMsg string) error {
	base := "/events/" + url.PathEscape(urlID)
	filter := c.Query("filter")
	view := editView{
		BasePath:     base,
		Filter:       filter,
		Form:         form,
		Frequencies:  frequencies,
		UpdateAction: actionWithSuffix(base, id, filter, ""),
		DeleteAction: actionWithSuffix(base, id, filter, "/delete"),
		ErrorMessage: errMsg,
	}
	return h.render.Render(c, http.StatusOK, "edit", view)
}

func actionWithSuffix(base, id, filter, suffix string) string {
	action := base + "/reminders/" + url.PathEscape(id) + suffix
	if filter != "" {
		action += "?filter=" + url.QueryEscape(filter)
	}
	return action
}

func (h *Handler) listPath(urlID, filter, notice string) string {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if notice != "" {
		q.Set("notice", notice)
	}
	path := "/events/" + url.PathEscape(urlID)
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return path
}

func formFromRequest(c *fiber.Ctx) FormData {
	return FormData{
		TaskDescription:  c.FormValue("taskDescription"),
		Date:             c.FormValue("date"),
		Time:             c.FormValue("time"),
		Recurrence:       c.FormValue("recurrence"),
		CustomRecurrence: c.FormValue("customRecurrence"),
		Invitees:         c.FormValue("invitees"),
	}
}

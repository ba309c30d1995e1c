package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
)

type Handler struct {
	d        Dependencies
	t        pageTemplates
	sessions *sessionStore
}

func (h *Handler) redirect(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, path, http.StatusFound)
	}
}

func (h *Handler) render(w http.ResponseWriter, page string, data any) {
	t, ok := h.t[page]
	if !ok {
		http.Error(w, "template not found: "+page, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ---------- Pages ----------

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, _ := h.d.Users.Count(ctx)
	active, _ := h.d.Subs.ActiveSubscriberCount(ctx)
	peers, _ := h.d.Peers.ActiveCount(ctx)
	recent, _ := h.d.Payments.ListRecent(ctx, 10)
	board, _ := h.d.Games.Leaderboard(ctx, 10)

	h.render(w, "dashboard.tmpl", map[string]any{
		"Title":       "Обзор",
		"Users":       users,
		"ActiveSubs":  active,
		"ActivePeers": peers,
		"Payments":    recent,
		"Leaderboard": board,
	})
}

func (h *Handler) UsersList(w http.ResponseWriter, r *http.Request) {
	var rows []models.User
	q := h.d.DB.Order("join_date desc").Limit(200)
	if s := strings.TrimSpace(r.URL.Query().Get("q")); s != "" {
		like := "%" + s + "%"
		q = q.Where("username LIKE ? OR full_name LIKE ?", like, like)
	}
	_ = q.Find(&rows).Error
	h.render(w, "users_list.tmpl", map[string]any{
		"Title": "Пользователи",
		"Rows":  rows,
		"Query": r.URL.Query().Get("q"),
	})
}

func (h *Handler) UserDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	user, err := h.d.Users.Get(ctx, userID)
	if err != nil || user == nil {
		http.NotFound(w, r)
		return
	}
	subs, _ := h.d.Subs.ListByUser(ctx, userID)
	peers, _ := h.d.Peers.ListByUser(ctx, userID)
	profile, _ := h.d.Games.Profile(ctx, userID)
	end, _ := h.d.Subs.ActiveEnd(ctx, userID)

	h.render(w, "user_detail.tmpl", map[string]any{
		"Title":     "Пользователь " + strconv.FormatInt(userID, 10),
		"User":      user,
		"Subs":      subs,
		"Peers":     peers,
		"Profile":   profile,
		"ActiveEnd": end,
		"IsAdmin":   h.d.CFG.IsAdmin(userID),
	})
}

func (h *Handler) PaymentsList(w http.ResponseWriter, r *http.Request) {
	rows, _ := h.d.Payments.ListRecent(r.Context(), 200)
	h.render(w, "payments_list.tmpl", map[string]any{
		"Title": "Платежи",
		"Rows":  rows,
	})
}

func (h *Handler) PeersList(w http.ResponseWriter, r *http.Request) {
	var rows []models.PeerConfig
	_ = h.d.DB.Order("config_id desc").Limit(200).Find(&rows).Error
	h.render(w, "peers_list.tmpl", map[string]any{
		"Title": "Пиры WireGuard",
		"Rows":  rows,
	})
}

// ---------- API ----------

// APIExtend продлевает подписку вручную (форма с полем days).
func (h *Handler) APIExtend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	userID, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	days, err := strconv.Atoi(r.FormValue("days"))
	if err != nil || days <= 0 || days > 3650 {
		http.Error(w, "days must be 1..3650", http.StatusBadRequest)
		return
	}
	payID := "manual-" + strconv.FormatInt(userID, 10) + "-" + strconv.FormatInt(time.Now().Unix(), 10)
	if _, err := h.d.Subs.Extend(r.Context(), userID, days, payID, false); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/users/"+mux.Vars(r)["id"], http.StatusFound)
}

// APIRevoke снимает все пиры пользователя.
func (h *Handler) APIRevoke(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err := h.d.Manager.RevokeUser(r.Context(), userID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/users/"+mux.Vars(r)["id"], http.StatusFound)
}

// APISweep запускает зачистку истёкших вне расписания.
func (h *Handler) APISweep(w http.ResponseWriter, r *http.Request) {
	rep, err := h.d.REC.Sweep(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"candidates": rep.Candidates,
		"cleaned":    rep.Cleaned,
		"failed":     rep.Failed,
	})
}

// ---------- utils ----------

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

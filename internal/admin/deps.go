package admin

import (
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/controller"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/repo"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/wireguard"
)

type Dependencies struct {
	DB       *gorm.DB
	Users    *repo.UserStore
	Subs     *repo.SubscriptionStore
	Peers    *repo.PeerStore
	Payments *repo.PaymentStore
	Games    *repo.GameStore
	Manager  *wireguard.Manager
	REC      *controller.Reconciler
	CFG      *config.Config
}

func Attach(r *mux.Router, d Dependencies) {
	h := &Handler{d: d, t: parseTemplates(), sessions: newSessionStore(d.CFG)}
	sub := r.PathPrefix("/admin").Subrouter()

	// вход/выход без сессии
	sub.HandleFunc("/login", h.LoginPage).Methods("GET")
	sub.HandleFunc("/login", h.LoginSubmit).Methods("POST")
	sub.HandleFunc("/logout", h.Logout).Methods("POST")

	// static (very small)
	sub.HandleFunc("/static/style.css", serveCSS).Methods("GET")
	sub.HandleFunc("/static/app.js", serveJS).Methods("GET")

	// pages
	pages := sub.NewRoute().Subrouter()
	pages.Use(h.requireSession)
	pages.HandleFunc("", h.redirect("/admin/dashboard")).Methods("GET")
	pages.HandleFunc("/", h.redirect("/admin/dashboard")).Methods("GET")
	pages.HandleFunc("/dashboard", h.Dashboard).Methods("GET")
	pages.HandleFunc("/users", h.UsersList).Methods("GET")
	pages.HandleFunc("/users/{id:[0-9]+}", h.UserDetail).Methods("GET")
	pages.HandleFunc("/payments", h.PaymentsList).Methods("GET")
	pages.HandleFunc("/peers", h.PeersList).Methods("GET")

	// api (JSON or redirect back)
	pages.HandleFunc("/api/users/{id:[0-9]+}/extend", h.APIExtend).Methods("POST")
	pages.HandleFunc("/api/users/{id:[0-9]+}/revoke", h.APIRevoke).Methods("POST")
	pages.HandleFunc("/api/sweep", h.APISweep).Methods("POST")
}

package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Webhook ingestion
	wh := WebhookHandler{Cycles: d.Cycles, Runner: d.Runner, Resumes: d.Resumes, Hub: d.Hub}
	mux.HandleFunc("/webhook", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: wh.Receive,
	}))

	// Cycle status / history / manual run
	ch := CycleHandler{Runner: d.Runner, History: d.History, Cycles: d.Cycles}
	mux.HandleFunc("/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Status,
	}))
	mux.HandleFunc("/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ch.Run,
	}))
	mux.HandleFunc("/cycles", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.List,
	}))
	mux.HandleFunc("/cycles/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.AttemptsByPath, // expects /cycles/{id}/attempts
	}))
	mux.HandleFunc("/cycle-config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Config,
	}))

	// Ledger
	lh := LedgerHandler{Ledger: d.Ledger}
	mux.HandleFunc("/log", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.View,
	}))
	mux.HandleFunc("/download-log", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Download,
	}))

	// Engine settings
	if d.CfgVal != nil {
		sh := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath, LoadCfg: d.LoadCfg}
		mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
			http.MethodGet: sh.Get,
			http.MethodPut: sh.Put,
		}))
		mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
			http.MethodGet: sh.Path,
		}))
		mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
			http.MethodGet: sh.Validate,
		}))

		sec := SecretsHandler{CfgVal: d.CfgVal}
		mux.HandleFunc("/api/secrets/imap", methodMux(map[string]http.HandlerFunc{
			http.MethodPost: sec.SetIMAPPassword,
		}))
		mux.HandleFunc("/api/secrets/smtp", methodMux(map[string]http.HandlerFunc{
			http.MethodPost: sec.SetSMTPPassword,
		}))
	}

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	hh := HealthHandler{}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))
	if d.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

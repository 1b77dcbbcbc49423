package api

import "net/http"

func RegisterRoutes(mux *http.ServeMux, h *Handler) http.Handler {
	// Map APIs
	mux.HandleFunc("/maps/", func(w http.ResponseWriter, r *http.Request) {
		name, op, key, ok := mapPath(r.URL.Path)
		if !ok {
			http.Error(w, "malformed path", http.StatusBadRequest)
			return
		}

		switch op {
		case "kv":
			switch r.Method {
			case http.MethodPut:
				h.PutKey(w, r, name, key)
			case http.MethodGet:
				h.GetKey(w, r, name, key)
			case http.MethodHead:
				h.HeadKey(w, r, name, key)
			case http.MethodDelete:
				h.DeleteKey(w, r, name, key)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
		case "replace":
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.ReplaceKey(w, r, name, key)
		case "entries":
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.GetEntry(w, r, name, key)
		default:
			http.NotFound(w, r)
		}
	})

	// Admin APIs
	mux.HandleFunc("/admin/maps", getOnly(h.ListMaps))
	mux.HandleFunc("/admin/maps/", func(w http.ResponseWriter, r *http.Request) {
		name, sub, ok := adminMapPath(r.URL.Path)
		if !ok {
			http.Error(w, "malformed path", http.StatusBadRequest)
			return
		}

		switch sub {
		case "":
			switch r.Method {
			case http.MethodGet:
				h.GetMap(w, r, name)
			case http.MethodDelete:
				h.DropMap(w, r, name)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
		case "keys":
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.ListKeys(w, r, name)
		default:
			http.Error(w, "malformed path", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/admin/logs", getOnly(h.GetLogs))

	// Observability APIs
	mux.HandleFunc("/metrics", getOnly(h.GetMetrics))
	mux.HandleFunc("/metrics/prometheus", getOnly(h.GetPrometheusMetrics))
	mux.HandleFunc("/health", getOnly(h.GetHealth))

	// Middlewares
	return Chain(
		mux,
		RecoveryMiddleware(h.logger, h.metrics),
		LoggingMiddleware(h.logger, h.metrics),
	)
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

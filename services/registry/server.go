package registry

import (
	"strings"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// Handler answers A queries for the registry domain.
type Handler struct {
	store  *Store
	logger zerolog.Logger
}

func NewHandler(store *Store, logger zerolog.Logger) *Handler {
	return &Handler{store: store, logger: logger.With().Str("pkg", "registry").Logger()}
}

func (h *Handler) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	if len(r.Question) == 0 {
		m.SetRcode(r, dns.RcodeFormatError)
		h.write(w, m, "")
		return
	}

	q := r.Question[0]
	name := strings.ToLower(strings.TrimSpace(q.Name))

	switch {
	case q.Qtype != dns.TypeA:
		h.logger.Debug().Str("name", name).Str("type", dns.TypeToString[q.Qtype]).Msg("NOTIMP")
		m.SetRcode(r, dns.RcodeNotImplemented)
	default:
		rrs, ok := h.store.Records(name)
		if !ok {
			h.logger.Debug().Str("name", name).Msg("NXDOMAIN")
			m.SetRcode(r, dns.RcodeNameError)
			break
		}
		m.Answer = append(m.Answer, rrs...)
	}

	h.write(w, m, name)
}

func (h *Handler) write(w dns.ResponseWriter, m *dns.Msg, name string) {
	if err := w.WriteMsg(m); err != nil {
		h.logger.Warn().Err(err).Str("name", name).Msg("write dns response")
	}
}

// NewServer returns a UDP DNS server for the store's domain on addr.
// The caller starts it with ListenAndServe.
func NewServer(addr string, store *Store, logger zerolog.Logger) *dns.Server {
	mux := dns.NewServeMux()
	mux.Handle(dns.Fqdn(store.Domain()), NewHandler(store, logger))
	return &dns.Server{
		Addr:    addr,
		Net:     "udp",
		Handler: mux,
	}
}

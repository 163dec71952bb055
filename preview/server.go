package preview

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Server exposes a mailbox over HTTP.
type Server struct {
	box *Mailbox
}

// NewServer returns a server reading from box.
func NewServer(box *Mailbox) *Server {
	return &Server{box: box}
}

// Router returns the chi router for the server.  GET /latest returns the
// most recent update as JSON, GET /plot.png renders it as a spectrum plot.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/latest", s.Latest)
	r.Get("/plot.png", s.Plot)
	return r
}

// Latest writes the most recent update as JSON, or 404 if nothing has been
// published yet.
func (s *Server) Latest(w http.ResponseWriter, r *http.Request) {
	u, ok := s.box.Latest()
	if !ok {
		http.Error(w, "no scan point acquired yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(u); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Plot renders the most recent update to a PNG with the signal, background
// and net spectra overlaid.
func (s *Server) Plot(w http.ResponseWriter, r *http.Request) {
	u, ok := s.box.Latest()
	if !ok {
		http.Error(w, "no scan point acquired yet", http.StatusNotFound)
		return
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("point %d, %.2f deg, t=%gs", u.Index, u.Angle, u.Signal.IntegrationTime)
	p.X.Label.Text = "Wavelength [nm]"
	p.Y.Label.Text = "Counts"

	for i, trace := range []struct {
		name   string
		wl, ct []float64
	}{
		{"signal", u.Signal.Wavelength, u.Signal.Counts},
		{"background", u.Background.Wavelength, u.Background.Counts},
		{"net", u.Net.Wavelength, u.Net.Counts},
	} {
		if len(trace.wl) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(trace.wl))
		for j := range trace.wl {
			xys[j].X = trace.wl[j]
			xys[j].Y = trace.ct[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(trace.name, line)
	}

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		// client likely went away mid-write, nothing useful to do
		return
	}
}

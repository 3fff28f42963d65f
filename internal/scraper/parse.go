package scraper

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"domotica-bridge/internal/domotica"
)

// Card background colors the console uses for table status.
const (
	colorLibre     = "rgb(70, 255, 0)"
	colorOcupada   = "rgb(255, 45, 0)"
	colorReservada = "rgb(255, 241, 0)"
)

// mesaMeta is one row of the "Gestionar Mesas" modal table.
type mesaMeta struct {
	Nombre string
	Zona   string
	Nota   string
}

// parseMesaCards reads the table cards off the table list screen. Cards
// without a heading are decoration and skipped. An empty screen yields
// an empty slice, not an error.
func parseMesaCards(html string) ([]domotica.Mesa, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	mesas := make([]domotica.Mesa, 0)
	doc.Find("div.v-card--link").Each(func(_ int, card *goquery.Selection) {
		id := strings.TrimSpace(card.Find("h2").First().Text())
		if id == "" {
			return
		}
		style, _ := card.Attr("style")
		mesas = append(mesas, domotica.Mesa{
			Identificador: id,
			Ocupado:       parseOcupado(style),
			Nota:          strings.TrimSpace(card.Find("p.white--text").First().Text()),
		})
	})
	return mesas, nil
}

// parseOcupado maps the card background to occupancy. Green means free;
// red and the reserved yellow both count as occupied since neither can
// take a walk-in order.
func parseOcupado(style string) bool {
	return !strings.Contains(style, colorLibre)
}

// parseMesaRows reads the "Gestionar Mesas" modal table. Columns are
// nombre, zona and an optional nota.
func parseMesaRows(html string) ([]mesaMeta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	rows := make([]mesaMeta, 0)
	doc.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 2 {
			return
		}
		meta := mesaMeta{
			Nombre: strings.TrimSpace(tds.Eq(0).Text()),
			Zona:   strings.TrimSpace(tds.Eq(1).Text()),
		}
		if tds.Length() > 2 {
			meta.Nota = strings.TrimSpace(tds.Eq(2).Text())
		}
		if meta.Nombre != "" {
			rows = append(rows, meta)
		}
	})
	return rows, nil
}

// mergeMesaMeta fills zona and nota from the modal rows, matched by
// case-insensitive name. Cards without a matching row keep what the
// card itself showed.
func mergeMesaMeta(mesas []domotica.Mesa, rows []mesaMeta) []domotica.Mesa {
	byName := make(map[string]mesaMeta, len(rows))
	for _, r := range rows {
		byName[strings.ToLower(r.Nombre)] = r
	}
	for i := range mesas {
		meta, ok := byName[strings.ToLower(mesas[i].Identificador)]
		if !ok {
			continue
		}
		mesas[i].Zona = meta.Zona
		if mesas[i].Nota == "" {
			mesas[i].Nota = meta.Nota
		}
	}
	return mesas
}

// parseCategorias reads the category card names off a comanda screen.
func parseCategorias(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	categorias := make([]string, 0)
	doc.Find("div.hoverable.v-card--link").Each(func(_ int, card *goquery.Selection) {
		name := strings.TrimSpace(card.Find("h2").First().Text())
		if name == "" {
			name = strings.TrimSpace(card.Text())
		}
		if name != "" {
			categorias = append(categorias, name)
		}
	})
	return categorias, nil
}

// parseProductos reads a category's product table. Rows carry name,
// stock and price cells in that order; short or nameless rows are
// skipped.
func parseProductos(html, categoria string) ([]domotica.Producto, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	productos := make([]domotica.Producto, 0)
	doc.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 3 {
			return
		}
		nombre := strings.TrimSpace(tds.Eq(0).Text())
		if nombre == "" {
			return
		}
		productos = append(productos, domotica.Producto{
			Categoria: categoria,
			Nombre:    nombre,
			Stock:     parseStock(tds.Eq(1).Text()),
			Precio:    parsePrecio(tds.Eq(2).Text()),
		})
	})
	return productos, nil
}

// parseStock parses the stock cell. Unparseable or negative values
// clamp to 0; stock is never negative.
func parseStock(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parsePrecio strips the "S/" currency prefix the console renders and
// parses the remainder. Unparseable cells yield 0.
func parsePrecio(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "S/")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
)

// ScrapeCategorias reads the category card names off the open comanda
// screen.
func (s *Scraper) ScrapeCategorias(ctx context.Context) ([]string, error) {
	if err := s.nav.Require(domotica.InComanda); err != nil {
		return nil, err
	}

	html, err := s.drv.OuterHTML(ctx, selBody)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	return parseCategorias(html)
}

// ScrapeProductos opens one category on the comanda screen, reads its
// product table and returns to the category view. The back step runs
// even on a failed read so the screen is left where it started.
func (s *Scraper) ScrapeProductos(ctx context.Context, categoria string) ([]domotica.Producto, error) {
	if err := s.nav.Require(domotica.InComanda); err != nil {
		return nil, err
	}

	card := fmt.Sprintf(`//div[contains(@class, "hoverable") and contains(@class, "v-card--link")][.//h2[normalize-space(text()) = %q]]`, categoria)
	if err := s.drv.Click(ctx, card); err != nil {
		return nil, fmt.Errorf("%w: categoria %q: %v", domotica.ErrNotFound, categoria, err)
	}
	defer func() {
		if err := s.backToCategorias(ctx); err != nil {
			s.logger.Warn("return to categories", zap.String("categoria", categoria), zap.Error(err))
		}
	}()

	var html string
	err := s.retry.Do(ctx, "read product table", func(ctx context.Context) error {
		if waitErr := s.drv.WaitVisible(ctx, selProductTable); waitErr != nil {
			return waitErr
		}
		var readErr error
		html, readErr = s.drv.OuterHTML(ctx, selProductTable)
		return readErr
	})
	if err != nil {
		return nil, fmt.Errorf("productos %q: %w", categoria, err)
	}
	return parseProductos(html, categoria)
}

// ScrapeCarta walks every category and collects the full menu.
func (s *Scraper) ScrapeCarta(ctx context.Context) ([]domotica.Producto, error) {
	categorias, err := s.ScrapeCategorias(ctx)
	if err != nil {
		return nil, err
	}

	carta := make([]domotica.Producto, 0)
	for _, categoria := range categorias {
		productos, err := s.ScrapeProductos(ctx, categoria)
		if err != nil {
			return nil, err
		}
		carta = append(carta, productos...)
	}
	return carta, nil
}

func (s *Scraper) backToCategorias(ctx context.Context) error {
	if err := s.drv.Click(ctx, selBackArrow); err != nil {
		return err
	}
	return s.drv.WaitVisible(ctx, selCategoryCards)
}

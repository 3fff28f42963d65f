package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
)

// ScrapeMesas reads every table card on the table list screen and
// enriches it with zone data from the "Gestionar Mesas" modal. The
// session must be in the table list; no other state is accepted.
func (s *Scraper) ScrapeMesas(ctx context.Context) ([]domotica.Mesa, error) {
	if err := s.nav.Require(domotica.InTableList); err != nil {
		return nil, err
	}

	var html string
	err := s.retry.Do(ctx, "read table cards", func(ctx context.Context) error {
		var readErr error
		html, readErr = s.drv.OuterHTML(ctx, selBody)
		return readErr
	})
	if err != nil {
		return nil, fmt.Errorf("read table list: %w", err)
	}

	mesas, err := parseMesaCards(html)
	if err != nil {
		return nil, fmt.Errorf("parse table cards: %w", err)
	}
	if len(mesas) == 0 {
		return mesas, nil
	}

	rows, err := s.scrapeMesaMetadata(ctx)
	if err != nil {
		// Zone data is an enrichment; a broken modal must not hide
		// the occupancy data already in hand.
		s.logger.Warn("mesa metadata modal failed", zap.Error(err))
		return mesas, nil
	}
	return mergeMesaMeta(mesas, rows), nil
}

// scrapeMesaMetadata opens the management modal, reads its table and
// closes it again. The close click runs even when the read fails so the
// modal never blocks the next workflow.
func (s *Scraper) scrapeMesaMetadata(ctx context.Context) ([]mesaMeta, error) {
	if err := s.drv.Click(ctx, selOpcionesButton); err != nil {
		return nil, fmt.Errorf("open opciones: %w", err)
	}
	if err := s.drv.Click(ctx, selGestionarItem); err != nil {
		return nil, fmt.Errorf("open gestionar mesas: %w", err)
	}
	defer func() {
		if err := s.drv.Click(ctx, selModalClose); err != nil {
			s.logger.Warn("close mesa modal", zap.Error(err))
		}
	}()

	if err := s.drv.WaitVisible(ctx, selMesasTable); err != nil {
		return nil, fmt.Errorf("modal table: %w", err)
	}
	html, err := s.drv.OuterHTML(ctx, selMesasTable)
	if err != nil {
		return nil, fmt.Errorf("read modal table: %w", err)
	}
	return parseMesaRows(html)
}

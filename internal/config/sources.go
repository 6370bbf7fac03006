package config

import "github.com/ACS-web2026/aste-backend/internal/domain"

// DefaultInteraction fills the municipality search form found on the
// public judicial sale portals.
var DefaultInteraction = domain.Interaction{
	Input:  `input[name="comune"], #comune, .search-comune`,
	Submit: `button[type="submit"], .search-button, .btn-search`,
}

// DefaultSources is used when the configuration file lists no sources.
func DefaultSources() []domain.SourceConfig {
	return []domain.SourceConfig{
		{
			Name:   "Asta Legale",
			URL:    "https://www.astalegale.net/",
			Method: domain.MethodRendered,
			Selectors: domain.Selectors{
				Container:    ".immobile-card, .auction-item",
				Locality:     ".location, .comune",
				Price:        ".price, .prezzo",
				PropertyType: ".type, .tipologia",
			},
		},
		{
			Name:   "Asta Giudiziaria",
			URL:    "https://www.astagiudiziaria.com/",
			Method: domain.MethodAuto,
			Selectors: domain.Selectors{
				Container: ".property-card",
				Locality:  ".city",
				Price:     ".amount",
			},
		},
		{
			Name:                "PVP Giustizia",
			URL:                 "https://pvp.giustizia.it/pvp/",
			Method:              domain.MethodRendered,
			SearchURL:           "https://pvp.giustizia.it/pvp/it/ricerca.page",
			RequiresInteraction: true,
			Interaction:         DefaultInteraction,
		},
		{Name: "Aste Online", URL: "https://www.asteonline.it", Method: domain.MethodAuto},
		{Name: "Immobiliare Aste", URL: "https://aste.immobiliare.it", Method: domain.MethodRendered},
		{Name: "Fallimenti.it", URL: "https://www.fallimenti.it/", Method: domain.MethodAuto},
		{Name: "Sole 24 Ore", URL: "https://astetribunali24.ilsole24ore.com/", Method: domain.MethodRendered},
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/geo"
	"snail-trail-service/internal/platform/metrics"
	"snail-trail-service/internal/ports"
	"strings"

	"github.com/google/uuid"
)

// CostPerSpeedMeter prices a snail at speed (m/s) × distance (m) × coefficient coins.
const CostPerSpeedMeter = 0.1

var ErrGeocodingDisabled = errors.New("geocoding disabled")

type Quote struct {
	DistanceMeters float64
	Cost           float64
	ETASeconds     float64
	Countdown      string
}

// QuoteTrip prices a snail that starts at location and crawls toward target.
func QuoteTrip(
	ctx context.Context,
	provider ports.DistanceProvider,
	location domain.Coordinate,
	target domain.Coordinate,
	speed float64,
) (Quote, error) {
	if provider == nil {
		return Quote{}, errors.New("quote: distance provider is nil")
	}
	if err := domain.ValidatePurchasableSpeed(speed); err != nil {
		return Quote{}, fmt.Errorf("quote: %w", err)
	}

	r, err := provider.GetDistance(ctx, location, target)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: get distance: %w", err)
	}

	eta := r.DistanceMeters / speed
	return Quote{
		DistanceMeters: r.DistanceMeters,
		Cost:           speed * r.DistanceMeters * CostPerSpeedMeter,
		ETASeconds:     eta,
		Countdown:      FormatETA(eta),
	}, nil
}

// FormatETA renders seconds as HH:MM:SS, prefixed with whole days when
// needed. Durations that never finish render as "never".
func FormatETA(seconds float64) string {
	if !geo.Arrives(seconds) || seconds >= math.MaxInt64/2 {
		return "never"
	}

	total := int64(math.Round(seconds))
	days := total / 86400
	h := (total % 86400) / 3600
	m := (total % 3600) / 60
	s := total % 60

	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// PurchaseRequest describes a snail to buy. The target is, in order of
// precedence, Target, the geocoded TargetAddress, or the user's location
// (the snail then keeps following the user). The last form fails with
// ErrNoUserLocation until a location has been reported.
type PurchaseRequest struct {
	Name          string
	Location      domain.Coordinate
	Target        *domain.Coordinate
	TargetAddress string
	Speed         float64
	Color         *string
}

// Purchaser quotes and sells snails against the user's balance.
type Purchaser struct {
	Store     *AppState
	Distances ports.DistanceProvider
	Geocoder  ports.Geocoder
	Snails    ports.SnailRepository
	Profiles  ports.ProfileRepository
	Metrics   *metrics.Collector
	Logger    *slog.Logger

	NewID func() string
}

// Quote resolves the request into the snail it would create and its price.
func (p *Purchaser) Quote(ctx context.Context, req PurchaseRequest) (domain.Snail, Quote, error) {
	sn, err := p.build(ctx, req)
	if err != nil {
		return domain.Snail{}, Quote{}, err
	}

	q, err := QuoteTrip(ctx, p.Distances, sn.Location, sn.TargetLocation, sn.Speed)
	if err != nil {
		return domain.Snail{}, Quote{}, err
	}
	return sn, q, nil
}

// Purchase debits the quoted cost and adds the snail. The debit is refunded
// if the snail cannot be stored.
func (p *Purchaser) Purchase(ctx context.Context, req PurchaseRequest) (domain.Snail, Quote, error) {
	sn, q, err := p.Quote(ctx, req)
	if err != nil {
		return domain.Snail{}, Quote{}, fmt.Errorf("purchase: %w", err)
	}

	if _, err := p.Store.AdjustBalance(-q.Cost); err != nil {
		return domain.Snail{}, Quote{}, fmt.Errorf("purchase %q: %w", sn.Name, err)
	}

	if err := p.Store.AddEntity(sn); err != nil {
		p.refund(ctx, q.Cost)
		return domain.Snail{}, Quote{}, fmt.Errorf("purchase %q: %w", sn.Name, err)
	}

	if p.Snails != nil {
		if err := p.Snails.SaveSnail(ctx, sn); err != nil {
			_ = p.Store.RemoveEntity(sn.ID)
			p.refund(ctx, q.Cost)
			return domain.Snail{}, Quote{}, fmt.Errorf("purchase %q: persist snail: %w", sn.Name, err)
		}
	}

	if p.Profiles != nil {
		if err := p.Profiles.SaveProfile(ctx, p.Store.Profile()); err != nil {
			p.logger().WarnContext(ctx, "persist balance after purchase failed", "snail_id", sn.ID, "err", err)
		}
	}

	p.Metrics.ObservePurchase()

	stored, err := p.Store.Get(sn.ID)
	if err != nil {
		stored = sn
	}
	return stored, q, nil
}

func (p *Purchaser) build(ctx context.Context, req PurchaseRequest) (domain.Snail, error) {
	if p.Store == nil {
		return domain.Snail{}, errors.New("purchaser: store is nil")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Snail{}, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidName)
	}
	if err := req.Location.Validate(); err != nil {
		return domain.Snail{}, fmt.Errorf("location: %w", err)
	}
	if err := domain.ValidatePurchasableSpeed(req.Speed); err != nil {
		return domain.Snail{}, err
	}

	sn := domain.Snail{
		ID:       p.newID(),
		Name:     name,
		Location: req.Location,
		Speed:    req.Speed,
	}

	if req.Color != nil {
		c, err := domain.ParseColor(*req.Color)
		if err != nil {
			return domain.Snail{}, err
		}
		sn.Color = &c
	}

	switch {
	case req.Target != nil:
		if err := req.Target.Validate(); err != nil {
			return domain.Snail{}, fmt.Errorf("target: %w", err)
		}
		sn.TargetLocation = *req.Target
	case strings.TrimSpace(req.TargetAddress) != "":
		if p.Geocoder == nil {
			return domain.Snail{}, ErrGeocodingDisabled
		}
		c, err := p.Geocoder.Geocode(ctx, req.TargetAddress)
		if err != nil {
			return domain.Snail{}, fmt.Errorf("geocode target %q: %w", req.TargetAddress, err)
		}
		sn.TargetLocation = c
	default:
		// A follower is priced against the user's location, so it cannot be
		// sold before that location is known.
		loc, ok := p.Store.UserLocation()
		if !ok {
			return domain.Snail{}, ErrNoUserLocation
		}
		sn.FollowUser = true
		sn.TargetLocation = loc
	}

	return sn, nil
}

func (p *Purchaser) refund(ctx context.Context, amount float64) {
	if _, err := p.Store.AdjustBalance(amount); err != nil {
		p.logger().ErrorContext(ctx, "refund failed", "amount", amount, "err", err)
	}
}

func (p *Purchaser) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

func (p *Purchaser) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

package game

// ImpactKind classifies what a projectile ran into
type ImpactKind uint8

const (
	ImpactTerrain ImpactKind = iota
	ImpactVehicle
)

// Impact records one projectile resolution so the world can apply drops, events and logging
type Impact struct {
	Kind       ImpactKind
	Projectile *Projectile

	// Terrain impacts
	TileX, TileY  int
	Tile          Tile
	TileDestroyed bool

	// Vehicle impacts
	Target    *Vehicle
	Absorbed  bool // shield took the hit
	Destroyed bool
	Respawned bool // destroyed player came back at its anchor
}

// CollisionResolver resolves projectiles against terrain and vehicles once per tick
type CollisionResolver struct {
	cfg Config
}

// NewCollisionResolver creates a resolver for the given configuration
func NewCollisionResolver(cfg Config) *CollisionResolver {
	return &CollisionResolver{cfg: cfg}
}

// Resolve walks live projectiles in registry order. Terrain at the projectile's center tile is
// checked first; a surviving projectile then hits at most one vehicle, in vehicle registry order.
// Destroyed enemies are marked for removal; destroyed players lose a life.
// Impacts are appended to dst and returned.
func (c *CollisionResolver) Resolve(grid *TileGrid, vehicles []*Vehicle, projectiles *ProjectileRegistry, dst []Impact) []Impact {
	for _, p := range projectiles.Items() {
		if p.dead {
			continue
		}

		if impact, hit := c.resolveTerrain(grid, p); hit {
			dst = append(dst, impact)
			continue
		}

		if impact, hit := c.resolveVehicles(vehicles, p); hit {
			dst = append(dst, impact)
		}
	}
	return dst
}

func (c *CollisionResolver) resolveTerrain(grid *TileGrid, p *Projectile) (Impact, bool) {
	tx, ty := grid.TileAt(p.Box.Center())
	tile := grid.Get(tx, ty)

	impact := Impact{Kind: ImpactTerrain, Projectile: p, TileX: tx, TileY: ty, Tile: tile}
	switch tile {
	case Steel, Brick, Base:
		impact.TileDestroyed = grid.Destroy(tx, ty, p.Power)
	case Water:
	default:
		return Impact{}, false
	}
	p.dead = true
	return impact, true
}

func (c *CollisionResolver) resolveVehicles(vehicles []*Vehicle, p *Projectile) (Impact, bool) {
	for _, v := range vehicles {
		if v.removed || v.ID == p.Owner {
			continue
		}
		// Enemies never hurt each other; player shots hit anyone else
		if p.OwnerRole == RoleEnemy && v.Role == RoleEnemy {
			continue
		}
		if !p.Box.Overlaps(v.Box) {
			continue
		}

		impact := Impact{Kind: ImpactVehicle, Projectile: p, Target: v, Absorbed: v.Shielded()}
		p.dead = true
		if !v.Hit(1) {
			return impact, true
		}

		impact.Destroyed = true
		if v.Role == RoleEnemy {
			v.markRemoved()
		} else {
			impact.Respawned = v.LoseLife(c.cfg)
		}
		return impact, true
	}
	return Impact{}, false
}

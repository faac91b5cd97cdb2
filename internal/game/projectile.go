package game

// ProjectileID identifies a projectile; 0 means "no projectile"
type ProjectileID uint32

// Projectile is a bullet travelling in a fixed direction.
// Owner is an identity handle only; the owner may be gone while the projectile flies.
type Projectile struct {
	ID        ProjectileID
	Owner     VehicleID
	OwnerRole Role
	Box       Rect
	Dir       Direction
	Speed     int
	Power     int

	dead bool
}

// Dead reports whether the projectile was consumed or left the playfield
func (p *Projectile) Dead() bool { return p.dead }

// Update moves the projectile and kills it once its leading edge leaves the playfield.
// Returns false if the projectile should be removed.
func (p *Projectile) Update(width, height int) bool {
	if p.dead {
		return false
	}
	dx, dy := p.Dir.Delta()
	p.Box = p.Box.Translate(dx*p.Speed, dy*p.Speed)

	var out bool
	switch p.Dir {
	case Up:
		out = p.Box.Y < 0
	case Down:
		out = p.Box.Bottom() > height
	case Left:
		out = p.Box.X < 0
	case Right:
		out = p.Box.Right() > width
	}
	if out {
		p.dead = true
		return false
	}
	return true
}

// ProjectileRegistry holds in-flight projectiles in firing order.
// Consumed projectiles stay in place, flagged dead, until Compact runs at the end of a tick.
type ProjectileRegistry struct {
	items  []*Projectile
	nextID ProjectileID
	size   int
}

// NewProjectileRegistry creates an empty registry for projectiles of the given box size
func NewProjectileRegistry(size, capacity int) *ProjectileRegistry {
	return &ProjectileRegistry{
		items: make([]*Projectile, 0, capacity),
		size:  size,
	}
}

// Fire creates a projectile centered at muzzle and appends it to the registry
func (r *ProjectileRegistry) Fire(owner VehicleID, role Role, dir Direction, muzzle Point, speed, power int) *Projectile {
	r.nextID++
	p := &Projectile{
		ID:        r.nextID,
		Owner:     owner,
		OwnerRole: role,
		Box:       RectAround(muzzle, r.size, r.size),
		Dir:       dir,
		Speed:     speed,
		Power:     power,
	}
	r.items = append(r.items, p)
	return p
}

// Live reports whether the projectile with the id is still in flight
func (r *ProjectileRegistry) Live(id ProjectileID) bool {
	for _, p := range r.items {
		if p.ID == id {
			return !p.dead
		}
	}
	return false
}

// Items returns the registry in firing order, dead entries included until compaction
func (r *ProjectileRegistry) Items() []*Projectile { return r.items }

// Len returns the number of live projectiles
func (r *ProjectileRegistry) Len() int {
	n := 0
	for _, p := range r.items {
		if !p.dead {
			n++
		}
	}
	return n
}

// Compact drops dead projectiles in place
func (r *ProjectileRegistry) Compact() {
	n := 0
	for _, p := range r.items {
		if p.dead {
			continue
		}
		r.items[n] = p
		n++
	}
	clear(r.items[n:])
	r.items = r.items[:n]
}

// Clear removes every projectile, live or not
func (r *ProjectileRegistry) Clear() {
	for _, p := range r.items {
		p.dead = true
	}
	r.Compact()
}

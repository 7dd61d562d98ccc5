package solver

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/detonate/compute"
	"github.com/pthm-cable/detonate/grid"
	"github.com/pthm-cable/detonate/kernels"
)

type fixture struct {
	dev  *compute.CPUDevice
	prog *kernels.Program
	set  *grid.Set
}

func newFixture(t *testing.T, size grid.Size, withDensity bool) *fixture {
	t.Helper()
	dev := compute.NewCPUDevice()
	set, err := grid.NewSet(dev, size, withDensity)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	t.Cleanup(func() {
		set.Release()
		dev.Close()
	})
	return &fixture{dev: dev, prog: kernels.NewProgram(dev), set: set}
}

func (f *fixture) read(t *testing.T, b *compute.Buffer) []float32 {
	t.Helper()
	out := make([]float32, b.Len())
	if err := f.dev.ReadBack(b, out); err != nil {
		t.Fatalf("ReadBack: %v", err)
	}
	return out
}

func (f *fixture) upload(t *testing.T, b *compute.Buffer, data []float32) {
	t.Helper()
	if err := f.dev.Upload(b, data); err != nil {
		t.Fatalf("Upload: %v", err)
	}
}

// swirl fills a velocity field with a smooth, divergent pattern.
func swirl(size grid.Size) []float32 {
	v := make([]float32, size.Cells()*3)
	for z := 0; z < size.Z; z++ {
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				i := size.Index(x, y, z)
				for c := 0; c < size.Dims(); c++ {
					phase := 0.7*float64(x) + 1.3*float64(y) + 0.4*float64(z) + float64(c)
					v[i*3+c] = float32(0.1 * math.Sin(phase))
				}
			}
		}
	}
	return v
}

func TestMassConservation(t *testing.T) {
	tests := []struct {
		name       string
		size       grid.Size
		policy     BoundaryPolicy
		iterations int
		interior   bool
	}{
		{"3d reflect", grid.Size{X: 8, Y: 8, Z: 8}, Reflect, 1000, false},
		{"3d zero", grid.Size{X: 8, Y: 8, Z: 8}, Zero, 1000, true},
		{"2d reflect", grid.Size{X: 16, Y: 16, Z: 1}, Reflect, 2000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.size, false)
			s := f.set
			f.upload(t, s.Velocity.Read(), swirl(tt.size))

			div := NewDivergence(f.prog)
			jac := NewJacobi(f.prog, tt.policy)
			proj := NewProjection(f.prog)

			if err := div.Compute(tt.size, s.Velocity, s.Obstacles, s.Divergence); err != nil {
				t.Fatal(err)
			}
			before := f.read(t, s.Divergence.Buffer())
			var maxBefore float32
			for _, d := range before {
				maxBefore = max(maxBefore, float32(math.Abs(float64(d))))
			}
			if maxBefore < 0.01 {
				t.Fatalf("initial divergence %f too small to be meaningful", maxBefore)
			}

			if err := jac.Solve(tt.size, s.Divergence, s.Obstacles, tt.iterations, s.Pressure); err != nil {
				t.Fatal(err)
			}
			if err := proj.Project(tt.size, s.Pressure, s.Obstacles, s.Velocity); err != nil {
				t.Fatal(err)
			}
			if err := div.Compute(tt.size, s.Velocity, s.Obstacles, s.Divergence); err != nil {
				t.Fatal(err)
			}

			after := f.read(t, s.Divergence.Buffer())
			for z := 0; z < tt.size.Z; z++ {
				for y := 0; y < tt.size.Y; y++ {
					for x := 0; x < tt.size.X; x++ {
						if tt.interior && (x == 0 || y == 0 || z == 0 || x == tt.size.X-1 || y == tt.size.Y-1 || z == tt.size.Z-1) {
							continue
						}
						d := after[tt.size.Index(x, y, z)]
						if math.Abs(float64(d)) > 1e-3 {
							t.Fatalf("divergence at (%d,%d,%d) = %f, want ~0 (initial max %f)", x, y, z, d, maxBefore)
						}
					}
				}
			}
		})
	}
}

func TestJacobiSwapsEveryIteration(t *testing.T) {
	size := grid.Size{X: 8, Y: 8, Z: 8}
	f := newFixture(t, size, false)
	rec := compute.NewRecorder(f.prog)
	jac := NewJacobi(rec, Reflect)

	const iterations = 5
	first := f.set.Pressure.Read().ID()
	if err := jac.Solve(size, f.set.Divergence, f.set.Obstacles, iterations, f.set.Pressure); err != nil {
		t.Fatal(err)
	}

	log := rec.Dispatches()
	if len(log) != iterations {
		t.Fatalf("dispatches = %d, want %d", len(log), iterations)
	}
	for i, d := range log {
		if d.Kernel != compute.KernelJacobi {
			t.Errorf("dispatch %d kernel = %s, want Jacobi", i, d.Kernel)
		}
		if d.Groups != (compute.Groups{X: 1, Y: 1, Z: 1}) {
			t.Errorf("dispatch %d groups = %+v, want 1x1x1", i, d.Groups)
		}
		if d.Bindings[compute.BindPressure] == d.Bindings[compute.BindWriteR] {
			t.Errorf("dispatch %d reads and writes the same buffer", i)
		}
		if i > 0 && d.Bindings[compute.BindPressure] != log[i-1].Bindings[compute.BindWriteR] {
			t.Errorf("dispatch %d does not read the previous pass's output", i)
		}
	}
	if f.set.Pressure.Read().ID() == first {
		t.Error("odd iteration count should leave the other buffer as read")
	}
}

func TestBoundaryContainment(t *testing.T) {
	size := grid.Size{X: 16, Y: 16, Z: 16}
	f := newFixture(t, size, false)
	obs := NewObstacles(f.prog, f.dev)
	field := f.set.Obstacles

	if err := obs.Clear(field); err != nil {
		t.Fatal(err)
	}
	// A container smaller than the grid followed by the shell.
	if err := obs.AddSphere(size, mgl32.Vec3{8, 8, 8}, 5, true, field); err != nil {
		t.Fatal(err)
	}
	if err := obs.AddSphere(size, mgl32.Vec3{0, 0, 0}, 3, false, field); err != nil {
		t.Fatal(err)
	}
	if err := obs.SetBoundary(size, field); err != nil {
		t.Fatal(err)
	}

	mask := f.read(t, field.Buffer())
	for z := 0; z < size.Z; z++ {
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				shell := x == 0 || y == 0 || z == 0 || x == size.X-1 || y == size.Y-1 || z == size.Z-1
				if shell && mask[size.Index(x, y, z)] != 1 {
					t.Fatalf("shell cell (%d,%d,%d) = %f, want solid", x, y, z, mask[size.Index(x, y, z)])
				}
			}
		}
	}
	if mask[size.Index(8, 8, 8)] != 0 {
		t.Error("centre of container should stay open")
	}

	if err := obs.Clear(field); err != nil {
		t.Fatal(err)
	}
	for i, v := range f.read(t, field.Buffer()) {
		if v != 0 {
			t.Fatalf("cell %d = %f after Clear, want 0", i, v)
		}
	}
}

func TestContainerInversion(t *testing.T) {
	size := grid.Size{X: 16, Y: 16, Z: 16}
	f := newFixture(t, size, false)
	obs := NewObstacles(f.prog, f.dev)

	other, err := grid.AllocateField(f.dev, size, compute.StrideScalar)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Release()

	centre := mgl32.Vec3{7.5, 8, 6.2}
	if err := obs.AddSphere(size, centre, 4.3, true, f.set.Obstacles); err != nil {
		t.Fatal(err)
	}
	if err := obs.AddSphere(size, centre, 4.3, false, other); err != nil {
		t.Fatal(err)
	}

	a := f.read(t, f.set.Obstacles.Buffer())
	b := f.read(t, other.Buffer())
	var inside int
	for i := range a {
		if a[i]+b[i] != 1 {
			t.Fatalf("cell %d: container %f obstacle %f, want complementary", i, a[i], b[i])
		}
		if b[i] == 1 {
			inside++
		}
	}
	if inside == 0 {
		t.Error("obstacle sphere marked no cells")
	}
}

func TestDissipationMonotonicity(t *testing.T) {
	size := grid.Size{X: 8, Y: 8, Z: 8}
	f := newFixture(t, size, true)
	s := f.set

	data := make([]float32, size.Cells())
	var before float64
	for i := range data {
		data[i] = float32(i%7) + 0.5
		before += float64(data[i])
	}
	f.upload(t, s.Density.Read(), data)

	const d = 0.9
	adv := NewAdvection(f.prog)
	if err := adv.Scalar(0.1, size, d, s.Density, s.Velocity, s.Obstacles); err != nil {
		t.Fatal(err)
	}

	var after float64
	for _, v := range f.read(t, s.Density.Read()) {
		after += float64(v)
	}
	if math.Abs(after-d*before) > 1e-3*before {
		t.Errorf("sum after = %f, want %f", after, d*before)
	}
}

func TestBuoyancyScenario(t *testing.T) {
	size := grid.Size{X: 64, Y: 64, Z: 64}
	f := newFixture(t, size, true)
	s := f.set

	centre := mgl32.Vec3{32, 32, 32}
	const radius = 2
	const dt = 0.1

	imp := NewImpulse(f.prog)
	if err := imp.Apply(dt, size, 10, radius, centre, s.Temperature); err != nil {
		t.Fatal(err)
	}
	b := NewBuoyancy(f.prog)
	if err := b.Apply(dt, size, 1.0, 0.0125, 0, s.Velocity, s.Density, s.Temperature); err != nil {
		t.Fatal(err)
	}

	vel := f.read(t, s.Velocity.Read())
	ci := size.Index(32, 32, 32)
	if vel[ci*3+1] <= 0 {
		t.Errorf("centre +Y velocity = %f, want > 0", vel[ci*3+1])
	}
	if vel[ci*3] != 0 || vel[ci*3+2] != 0 {
		t.Errorf("centre horizontal velocity = (%f, %f), want 0", vel[ci*3], vel[ci*3+2])
	}

	for z := 0; z < size.Z; z++ {
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				p := mgl32.Vec3{float32(x), float32(y), float32(z)}
				if p.Sub(centre).Len() <= radius {
					continue
				}
				i := size.Index(x, y, z)
				if vel[i*3] != 0 || vel[i*3+1] != 0 || vel[i*3+2] != 0 {
					t.Fatalf("velocity at (%d,%d,%d) = %v, want zero outside the impulse", x, y, z, vel[i*3:i*3+3])
				}
			}
		}
	}
}

func TestImpulseNonPositiveRadius(t *testing.T) {
	size := grid.Size{X: 8, Y: 8, Z: 8}
	f := newFixture(t, size, false)
	read := f.set.Temperature.Read()

	imp := NewImpulse(f.prog)
	if err := imp.Apply(0.1, size, 10, 0, mgl32.Vec3{4, 4, 4}, f.set.Temperature); err != nil {
		t.Fatal(err)
	}
	if f.set.Temperature.Read() != read {
		t.Error("zero-radius impulse should not swap")
	}
}

func TestNilProgramSkipsPass(t *testing.T) {
	size := grid.Size{X: 8, Y: 8, Z: 8}
	f := newFixture(t, size, true)
	s := f.set
	vel := s.Velocity.Read()

	if err := NewAdvection(nil).Velocity(0.1, size, 1, s.Velocity, s.Obstacles); err != nil {
		t.Errorf("Advection: %v", err)
	}
	if err := NewBuoyancy(nil).Apply(0.1, size, 1, 1, 0, s.Velocity, s.Density, s.Temperature); err != nil {
		t.Errorf("Buoyancy: %v", err)
	}
	if err := NewProjection(nil).Project(size, s.Pressure, s.Obstacles, s.Velocity); err != nil {
		t.Errorf("Projection: %v", err)
	}
	if err := NewJacobi(nil, Reflect).Solve(size, s.Divergence, s.Obstacles, 10, s.Pressure); err != nil {
		t.Errorf("Jacobi: %v", err)
	}
	if s.Velocity.Read() != vel {
		t.Error("skipped passes must not swap")
	}
}

func TestExpansionPushesOutward(t *testing.T) {
	size := grid.Size{X: 8, Y: 8, Z: 8}
	f := newFixture(t, size, false)
	s := f.set

	div := make([]float32, size.Cells())
	div[size.Index(4, 4, 4)] = -1
	f.upload(t, s.Divergence.Buffer(), div)

	if err := NewJacobi(f.prog, Reflect).Solve(size, s.Divergence, s.Obstacles, 400, s.Pressure); err != nil {
		t.Fatal(err)
	}
	if err := NewProjection(f.prog).Project(size, s.Pressure, s.Obstacles, s.Velocity); err != nil {
		t.Fatal(err)
	}

	vel := f.read(t, s.Velocity.Read())
	if u := vel[size.Index(4, 4, 4)*3]; u <= 0 {
		t.Errorf("+x face flow = %f, want outward", u)
	}
	if u := vel[size.Index(3, 4, 4)*3]; u >= 0 {
		t.Errorf("-x face flow = %f, want outward", u)
	}
}

func TestParseBoundaryPolicy(t *testing.T) {
	for name, want := range map[string]BoundaryPolicy{"": Reflect, "reflect": Reflect, "zero": Zero} {
		got, err := ParseBoundaryPolicy(name)
		if err != nil || got != want {
			t.Errorf("ParseBoundaryPolicy(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseBoundaryPolicy("wrap"); err == nil {
		t.Error("unknown policy should fail")
	}
}

// rampX fills a scalar field with each cell's x index.
func rampX(size grid.Size) []float32 {
	data := make([]float32, size.Cells())
	for z := 0; z < size.Z; z++ {
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				data[size.Index(x, y, z)] = float32(x)
			}
		}
	}
	return data
}

func uniformVelocity(size grid.Size, v mgl32.Vec3) []float32 {
	data := make([]float32, size.Cells()*3)
	for i := 0; i < size.Cells(); i++ {
		copy(data[i*3:], v[:])
	}
	return data
}

func TestAdvectScalarBacktrace(t *testing.T) {
	size := grid.Size{X: 8, Y: 8, Z: 8}
	tests := []struct {
		name string
		u    float32
		dt   float32
		want func(x int) float32
	}{
		{"one cell shift", 1, 1, func(x int) float32 { return float32(max(x-1, 0)) }},
		{"half cell shift", 1, 0.5, func(x int) float32 { return max(float32(x)-0.5, 0) }},
		{"clamped at low edge", 1, 100, func(int) float32 { return 0 }},
		{"clamped at high edge", -1, 100, func(int) float32 { return 7 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, size, true)
			s := f.set
			f.upload(t, s.Density.Read(), rampX(size))
			f.upload(t, s.Velocity.Read(), uniformVelocity(size, mgl32.Vec3{tt.u, 0, 0}))

			adv := NewAdvection(f.prog)
			if err := adv.Scalar(tt.dt, size, 1, s.Density, s.Velocity, s.Obstacles); err != nil {
				t.Fatal(err)
			}

			got := f.read(t, s.Density.Read())
			for z := 0; z < size.Z; z++ {
				for y := 0; y < size.Y; y++ {
					for x := 0; x < size.X; x++ {
						v := got[size.Index(x, y, z)]
						if math.Abs(float64(v-tt.want(x))) > 1e-5 {
							t.Fatalf("cell (%d,%d,%d) = %f, want %f", x, y, z, v, tt.want(x))
						}
					}
				}
			}
		})
	}
}

func TestAdvectVelocityTransportsComponents(t *testing.T) {
	size := grid.Size{X: 8, Y: 8, Z: 8}
	f := newFixture(t, size, false)
	s := f.set

	// Uniform +x flow carrying a y component that grows with x.
	vel := make([]float32, size.Cells()*3)
	for z := 0; z < size.Z; z++ {
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				i := size.Index(x, y, z)
				vel[i*3] = 1
				vel[i*3+1] = float32(x)
			}
		}
	}
	f.upload(t, s.Velocity.Read(), vel)

	adv := NewAdvection(f.prog)
	if err := adv.Velocity(1, size, 1, s.Velocity, s.Obstacles); err != nil {
		t.Fatal(err)
	}

	got := f.read(t, s.Velocity.Read())
	for z := 0; z < size.Z; z++ {
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				i := size.Index(x, y, z)

				wantU := float32(1)
				if x == size.X-1 {
					wantU = 0 // face on the grid boundary
				}
				if got[i*3] != wantU {
					t.Fatalf("u at (%d,%d,%d) = %f, want %f", x, y, z, got[i*3], wantU)
				}

				wantV := float32(max(x-1, 0))
				if y == size.Y-1 {
					wantV = 0
				}
				if math.Abs(float64(got[i*3+1]-wantV)) > 1e-5 {
					t.Fatalf("v at (%d,%d,%d) = %f, want %f", x, y, z, got[i*3+1], wantV)
				}
				if got[i*3+2] != 0 {
					t.Fatalf("w at (%d,%d,%d) = %f, want 0", x, y, z, got[i*3+2])
				}
			}
		}
	}
}

func TestParticlesSplatToNearestCell(t *testing.T) {
	size := grid.Size{X: 8, Y: 8, Z: 8}
	tests := []struct {
		name    string
		texSize grid.Size
		pos     mgl32.Vec3
		want    [3]int
	}{
		{"round up", size, mgl32.Vec3{2.6, 3.4, 5}, [3]int{3, 3, 5}},
		{"below first centre", size, mgl32.Vec3{-0.4, 0, 0}, [3]int{0, 0, 0}},
		{"upsampled", grid.Size{X: 16, Y: 16, Z: 16}, mgl32.Vec3{2.6, 3.4, 5}, [3]int{6, 7, 11}},
		{"downsampled", grid.Size{X: 4, Y: 4, Z: 4}, mgl32.Vec3{2.6, 3.4, 5}, [3]int{1, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, size, false)
			parts, err := f.dev.NewBuffer(1, compute.StrideParticle)
			if err != nil {
				t.Fatal(err)
			}
			tex, err := f.dev.NewBuffer(tt.texSize.Cells(), compute.StrideScalar)
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() {
				f.dev.Release(parts)
				f.dev.Release(tex)
			})

			rec := make([]float32, compute.StrideParticle)
			copy(rec[compute.ParticlePosition:], tt.pos[:])
			rec[compute.ParticleMass] = 1
			f.upload(t, parts, rec)

			out := NewOutput(f.prog)
			if err := out.ParticlesToVolume(size, parts, 1, tex, tt.texSize, false); err != nil {
				t.Fatal(err)
			}

			got := f.read(t, tex)
			want := tt.texSize.Index(tt.want[0], tt.want[1], tt.want[2])
			for i, v := range got {
				switch {
				case i == want && v != 1:
					t.Errorf("target cell = %f, want 1", v)
				case i != want && v != 0:
					x, y, z := i%tt.texSize.X, (i/tt.texSize.X)%tt.texSize.Y, i/(tt.texSize.X*tt.texSize.Y)
					t.Errorf("mass landed in (%d,%d,%d), want %v", x, y, z, tt.want)
				}
			}
		})
	}
}

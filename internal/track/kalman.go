package track

import (
	"gonum.org/v1/gonum/mat"

	"github.com/fieldside/shuttlerun/internal/pose"
)

// kalman2D is a constant-velocity Kalman filter over a 2D position.
// State vector: [x, y, vx, vy]. Measurements are positions only.
type kalman2D struct {
	x *mat.VecDense // state estimate
	p *mat.Dense    // estimate covariance
	q float64       // process noise intensity
	r float64       // measurement noise variance
}

// newKalman2D creates a filter initialized at the given position with
// zero velocity and a loose initial covariance.
func newKalman2D(initial pose.Point2D, processNoise, measurementNoise float64) *kalman2D {
	k := &kalman2D{
		x: mat.NewVecDense(4, []float64{initial.X, initial.Y, 0, 0}),
		p: mat.NewDense(4, 4, nil),
		q: processNoise,
		r: measurementNoise,
	}
	for i := 0; i < 4; i++ {
		k.p.Set(i, i, 100)
	}
	return k
}

// predict advances the state by dt seconds under the constant-velocity
// model and returns the predicted position.
func (k *kalman2D) predict(dt float64) pose.Point2D {
	f := mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})

	var xNew mat.VecDense
	xNew.MulVec(f, k.x)
	k.x.CopyVec(&xNew)

	// P = F P F^T + Q
	var fp, fpft mat.Dense
	fp.Mul(f, k.p)
	fpft.Mul(&fp, f.T())
	qm := processNoiseMatrix(dt, k.q)
	fpft.Add(&fpft, qm)
	k.p.Copy(&fpft)

	return k.position()
}

// update corrects the state with a position measurement and returns the
// filtered position.
func (k *kalman2D) update(z pose.Point2D) pose.Point2D {
	// Innovation: y = z - H x, with H selecting the position components.
	y0 := z.X - k.x.AtVec(0)
	y1 := z.Y - k.x.AtVec(1)

	// S = H P H^T + R (2x2), K = P H^T S^-1 (4x2).
	s := mat.NewDense(2, 2, []float64{
		k.p.At(0, 0) + k.r, k.p.At(0, 1),
		k.p.At(1, 0), k.p.At(1, 1) + k.r,
	})
	var sInv mat.Dense
	if err := sInv.Inverse(s); err != nil {
		// Singular innovation covariance; skip the correction.
		return k.position()
	}

	pht := mat.NewDense(4, 2, nil)
	for i := 0; i < 4; i++ {
		pht.Set(i, 0, k.p.At(i, 0))
		pht.Set(i, 1, k.p.At(i, 1))
	}
	var gain mat.Dense
	gain.Mul(pht, &sInv)

	// x = x + K y
	for i := 0; i < 4; i++ {
		k.x.SetVec(i, k.x.AtVec(i)+gain.At(i, 0)*y0+gain.At(i, 1)*y1)
	}

	// P = (I - K H) P
	ikh := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		ikh.Set(i, i, 1)
	}
	for i := 0; i < 4; i++ {
		ikh.Set(i, 0, ikh.At(i, 0)-gain.At(i, 0))
		ikh.Set(i, 1, ikh.At(i, 1)-gain.At(i, 1))
	}
	var pNew mat.Dense
	pNew.Mul(ikh, k.p)
	k.p.Copy(&pNew)

	return k.position()
}

func (k *kalman2D) position() pose.Point2D {
	return pose.Point2D{X: k.x.AtVec(0), Y: k.x.AtVec(1)}
}

// processNoiseMatrix builds the discrete white-noise acceleration model
// covariance for the given time step.
func processNoiseMatrix(dt, q float64) *mat.Dense {
	dt2 := dt * dt
	dt3 := dt2 * dt / 2
	dt4 := dt2 * dt2 / 4
	return mat.NewDense(4, 4, []float64{
		dt4 * q, 0, dt3 * q, 0,
		0, dt4 * q, 0, dt3 * q,
		dt3 * q, 0, dt2 * q, 0,
		0, dt3 * q, 0, dt2 * q,
	})
}

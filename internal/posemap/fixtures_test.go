package posemap

import "github.com/banshee-data/posemap/internal/body25"

// standingPose is a single person standing upright, facing the camera,
// arms relaxed at the sides, in 400x800 pixel coordinates.
func standingPose() [body25.NumKeypoints]body25.Keypoint {
	kp := func(x, y float64) body25.Keypoint {
		return body25.Keypoint{X: x, Y: y, Confidence: 0.9}
	}
	var a [body25.NumKeypoints]body25.Keypoint
	a[body25.Nose] = kp(200, 100)
	a[body25.Neck] = kp(200, 160)
	a[body25.RShoulder] = kp(160, 165)
	a[body25.RElbow] = kp(150, 260)
	a[body25.RWrist] = kp(145, 350)
	a[body25.LShoulder] = kp(240, 165)
	a[body25.LElbow] = kp(250, 260)
	a[body25.LWrist] = kp(255, 350)
	a[body25.MidHip] = kp(200, 380)
	a[body25.RHip] = kp(175, 380)
	a[body25.RKnee] = kp(172, 535)
	a[body25.RAnkle] = kp(170, 680)
	a[body25.LHip] = kp(225, 380)
	a[body25.LKnee] = kp(228, 535)
	a[body25.LAnkle] = kp(230, 680)
	a[body25.REye] = kp(190, 90)
	a[body25.LEye] = kp(210, 90)
	a[body25.REar] = kp(180, 95)
	a[body25.LEar] = kp(220, 95)
	a[body25.LBigToe] = kp(232, 710)
	a[body25.LSmallToe] = kp(244, 705)
	a[body25.LHeel] = kp(228, 690)
	a[body25.RBigToe] = kp(168, 710)
	a[body25.RSmallToe] = kp(156, 705)
	a[body25.RHeel] = kp(172, 690)
	return a
}

func transform(a [body25.NumKeypoints]body25.Keypoint, scale, dx, dy float64) body25.Pose {
	for i := range a {
		a[i].X = a[i].X*scale + dx
		a[i].Y = a[i].Y*scale + dy
	}
	return body25.FromArray(a)
}

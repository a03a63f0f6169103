package push

import "context"

// StaticPlatform is a headless platform whose token is supplied up front, for
// relays and test devices that already hold one. Without a token it behaves
// like a simulator.
type StaticPlatform struct {
	Token string
}

func (p StaticPlatform) IsPhysicalDevice() bool { return p.Token != "" }

func (p StaticPlatform) PermissionStatus(context.Context) (Permission, error) {
	return PermissionGranted, nil
}

func (p StaticPlatform) RequestPermission(context.Context) (Permission, error) {
	return PermissionGranted, nil
}

func (p StaticPlatform) PushToken(context.Context) (string, error) { return p.Token, nil }

package errors

import (
	"math"
	"testing"
)

func TestPixelRadius(t *testing.T) {
	tests := []struct {
		radius, pixelSize float64
		want              int
	}{
		{100, 30, 3},  // 3.33 rounds down
		{100, 40, 3},  // 2.5 rounds up (round half away from zero)
		{1, 1, 1},     // exact
		{0.4, 1, 0},   // rounds to zero
		{300, 100, 3}, // exact multiple
	}

	for _, tt := range tests {
		if got := PixelRadius(tt.radius, tt.pixelSize); got != tt.want {
			t.Errorf("PixelRadius(%g, %g) = %d, want %d", tt.radius, tt.pixelSize, got, tt.want)
		}
	}
}

func TestValidateRadius(t *testing.T) {
	tests := []struct {
		name      string
		radius    float64
		pixelSize float64
		minDim    int
		force     bool
		wantCode  Code
	}{
		{
			name:   "valid radius",
			radius: 90, pixelSize: 30, minDim: 100,
			wantCode: "",
		},
		{
			name:   "rounds to zero pixels",
			radius: 10, pixelSize: 30, minDim: 100,
			wantCode: ErrCodeInvalidRadius,
		},
		{
			name:   "negative radius",
			radius: -5, pixelSize: 30, minDim: 100,
			wantCode: ErrCodeInvalidRadius,
		},
		{
			name:   "NaN radius",
			radius: math.NaN(), pixelSize: 30, minDim: 100,
			wantCode: ErrCodeInvalidRadius,
		},
		{
			// 5% of 30*100 = 150; 200 exceeds the guard
			name:   "implausibly large radius",
			radius: 200, pixelSize: 30, minDim: 100,
			wantCode: ErrCodeRadiusTooLarge,
		},
		{
			name:   "large radius with force",
			radius: 200, pixelSize: 30, minDim: 100, force: true,
			wantCode: "",
		},
		{
			name:   "non-positive pixel size",
			radius: 90, pixelSize: 0, minDim: 100,
			wantCode: ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRadius(tt.radius, tt.pixelSize, tt.minDim, tt.force)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("ValidateRadius() = %v, want nil", err)
				}
				return
			}
			if !Is(err, tt.wantCode) {
				t.Fatalf("ValidateRadius() = %v, want code %v", err, tt.wantCode)
			}
		})
	}
}

func TestValidateRadiiEmpty(t *testing.T) {
	err := ValidateRadii(nil, 30, 100, false)
	if !Is(err, ErrCodeInvalidRadius) {
		t.Fatalf("ValidateRadii(nil) = %v, want INVALID_RADIUS", err)
	}
}

func TestValidatePixelRadius(t *testing.T) {
	if err := ValidatePixelRadius(1); err != nil {
		t.Errorf("ValidatePixelRadius(1) = %v, want nil", err)
	}
	if err := ValidatePixelRadius(0); !Is(err, ErrCodeInvalidKernel) {
		t.Errorf("ValidatePixelRadius(0) = %v, want INVALID_KERNEL", err)
	}
}

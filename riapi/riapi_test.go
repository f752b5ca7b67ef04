package riapi

import "testing"

func TestParseWidthHeightProducesConstrain(t *testing.T) {
	res, err := ParseWithWarnings("w=100&h=200&mode=max")
	if err != nil {
		t.Fatalf("ParseWithWarnings: %v", err)
	}
	if len(res.Steps) != 1 || res.Steps[0].TypeName != "Constrain" {
		t.Fatalf("expected a single Constrain step, got %+v", res.Steps)
	}
	if res.Steps[0].Params["width"] != 100 || res.Steps[0].Params["height"] != 200 {
		t.Fatalf("unexpected constrain params: %+v", res.Steps[0].Params)
	}
	if res.Steps[0].Params["mode"] != "within" {
		t.Fatalf("expected mode=within for mode=max, got %v", res.Steps[0].Params["mode"])
	}
}

func TestParseUnrecognizedKeyWarnsButSucceeds(t *testing.T) {
	res, err := ParseWithWarnings("w=10&bogus_key=1")
	if err != nil {
		t.Fatalf("ParseWithWarnings: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Key != "bogus_key" {
		t.Fatalf("expected one UnrecognizedKey warning, got %+v", res.Warnings)
	}
}

func TestParseCropProducesCropStep(t *testing.T) {
	res, err := ParseWithWarnings("crop=1,2,3,4")
	if err != nil {
		t.Fatalf("ParseWithWarnings: %v", err)
	}
	found := false
	for _, s := range res.Steps {
		if s.TypeName == "Crop" {
			found = true
			if s.Params["x1"] != 1 || s.Params["y2"] != 4 {
				t.Fatalf("unexpected crop params: %+v", s.Params)
			}
		}
	}
	if !found {
		t.Fatal("expected a Crop step")
	}
}

func TestParseMalformedCropWarns(t *testing.T) {
	res, err := ParseWithWarnings("crop=not,a,crop")
	if err != nil {
		t.Fatalf("ParseWithWarnings: %v", err)
	}
	for _, s := range res.Steps {
		if s.TypeName == "Crop" {
			t.Fatal("malformed crop should not produce a Crop step")
		}
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning for a malformed crop value")
	}
}

func TestParseGrayscaleAndSepia(t *testing.T) {
	res, err := ParseWithWarnings("grayscale=true")
	if err != nil {
		t.Fatalf("ParseWithWarnings: %v", err)
	}
	if len(res.Steps) != 1 || res.Steps[0].TypeName != "ColorFilterSrgb" || res.Steps[0].Params["preset"] != "grayscale" {
		t.Fatalf("expected a grayscale ColorFilterSrgb step, got %+v", res.Steps)
	}
	res, err = ParseWithWarnings("sepia=true")
	if err != nil {
		t.Fatalf("ParseWithWarnings: %v", err)
	}
	if len(res.Steps) != 1 || res.Steps[0].TypeName != "ColorFilterSrgb" || res.Steps[0].Params["preset"] != "sepia" {
		t.Fatalf("expected a sepia ColorFilterSrgb step, got %+v", res.Steps)
	}
}

func TestParseInvalidQuerystring(t *testing.T) {
	if _, err := ParseWithWarnings("%zz"); err == nil {
		t.Fatal("expected an error for an unparseable querystring")
	}
}

func TestParseEmptyQuerystringProducesNoSteps(t *testing.T) {
	res, err := ParseWithWarnings("")
	if err != nil {
		t.Fatalf("ParseWithWarnings: %v", err)
	}
	if len(res.Steps) != 0 {
		t.Fatalf("expected no steps for an empty querystring, got %+v", res.Steps)
	}
}

package homeassistant

import (
	"encoding/json"
	"fmt"
)

func ExampleDomain() {
	fmt.Println(Domain("light.kitchen"))
	fmt.Println(Domain("binary_sensor.front_door"))
	fmt.Println(DomainSupported("light"), DomainSupported("weather"))
	// Output:
	// light
	// binary_sensor
	// true false
}

func ExamplePercentFromBrightness() {
	fmt.Println(PercentFromBrightness(255))
	fmt.Println(PercentFromBrightness(128))
	fmt.Println(PercentFromBrightness(25.5))
	fmt.Println(PercentFromBrightness(0))
	// Output:
	// 100
	// 50
	// 10
	// 0
}

func ExampleBrightnessFromPercent() {
	fmt.Println(BrightnessFromPercent(100))
	fmt.Println(BrightnessFromPercent(50))
	fmt.Println(BrightnessFromPercent(10))
	fmt.Println(BrightnessFromPercent(0))
	// Output:
	// 255
	// 128
	// 26
	// 0
}

func ExampleState_Name() {
	raw := `{"entity_id":"light.kitchen","state":"on","attributes":{"friendly_name":"Kitchen Light","brightness":128}}`
	state := State{}
	json.Unmarshal([]byte(raw), &state)
	fmt.Println(state.Name())
	fmt.Println(state.Domain())
	fmt.Println(*state.Attributes.Brightness)
	// Output:
	// Kitchen Light
	// light
	// 128
}

func ExampleAttributes_IsGroup() {
	group := Attributes{Icon: "mdi:lightbulb-group"}
	plain := Attributes{Icon: "mdi:lightbulb"}
	fmt.Println(group.IsGroup(), plain.IsGroup())
	// Output:
	// true false
}

func ExampleSpokenColor() {
	fmt.Println(SpokenColor([]int{255, 0, 0}))
	fmt.Println(SpokenColor([]int{250, 10, 5}))
	fmt.Println(SpokenColor([]int{0, 0, 255}))
	fmt.Println(SpokenColor(nil))
	// Output:
	// red
	// red
	// blue
	//
}

func ExampleSimilarity() {
	fmt.Printf("%.2f\n", Similarity("kitchen light", "Kitchen  Light"))
	fmt.Printf("%.2f\n", Similarity("kitchen lite", "kitchen light"))
	fmt.Printf("%.2f\n", Similarity("humidifier", "dehumidifier"))
	// Output:
	// 1.00
	// 0.77
	// 0.83
}

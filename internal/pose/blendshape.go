package pose

// arkitChannels is the standard ARKit blendshape set (52 channels), in the
// order the Audio2Face bridge emits them.
var arkitChannels = []string{
	// Eye
	"eyeBlinkLeft", "eyeBlinkRight",
	"eyeLookDownLeft", "eyeLookDownRight", "eyeLookInLeft", "eyeLookInRight",
	"eyeLookOutLeft", "eyeLookOutRight", "eyeLookUpLeft", "eyeLookUpRight",
	"eyeSquintLeft", "eyeSquintRight", "eyeWideLeft", "eyeWideRight",
	// Brow
	"browDownLeft", "browDownRight", "browInnerUp", "browOuterUpLeft", "browOuterUpRight",
	// Cheek
	"cheekPuff", "cheekSquintLeft", "cheekSquintRight",
	// Nose
	"noseSneerLeft", "noseSneerRight",
	// Jaw
	"jawForward", "jawLeft", "jawRight", "jawOpen",
	// Mouth
	"mouthClose", "mouthFunnel", "mouthPucker", "mouthLeft", "mouthRight",
	"mouthSmileLeft", "mouthSmileRight", "mouthFrownLeft", "mouthFrownRight",
	"mouthDimpleLeft", "mouthDimpleRight", "mouthStretchLeft", "mouthStretchRight",
	"mouthRollLower", "mouthRollUpper", "mouthShrugLower", "mouthShrugUpper",
	"mouthPressLeft", "mouthPressRight", "mouthLowerDownLeft", "mouthLowerDownRight",
	"mouthUpperUpLeft", "mouthUpperUpRight",
	// Tongue
	"tongueOut",
}

// Vocabulary selects which channel set an utterance animates. The two
// vocabularies are never mixed within one utterance.
type Vocabulary int

const (
	// VocabularyViseme is the coarse set: 15 one-hot viseme channels.
	VocabularyViseme Vocabulary = iota
	// VocabularyBlendshape is the fine set: 52 dense ARKit channels.
	VocabularyBlendshape
)

// Channels returns the channel names of the vocabulary. The returned slice
// must not be mutated.
func (v Vocabulary) Channels() []string {
	switch v {
	case VocabularyBlendshape:
		return arkitChannels
	default:
		return visemeChannels[:]
	}
}

func (v Vocabulary) String() string {
	if v == VocabularyBlendshape {
		return "blendshape"
	}
	return "viseme"
}

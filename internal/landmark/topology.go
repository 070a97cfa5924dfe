package landmark

// Connection is a pair of vertex indices joined by a line when the set is
// drawn.
type Connection struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// PoseConnections are the 35 body lines of the 33-point pose topology.
var PoseConnections = []Connection{
	{0, 1}, {1, 2}, {2, 3}, {3, 7}, {0, 4},
	{4, 5}, {5, 6}, {6, 8}, {9, 10}, {11, 12},
	{11, 13}, {13, 15}, {15, 17}, {17, 19}, {19, 15},
	{15, 21}, {12, 14}, {14, 16}, {16, 18}, {18, 20},
	{20, 16}, {16, 22}, {11, 23}, {12, 24}, {23, 24},
	{23, 25}, {25, 27}, {27, 29}, {29, 31}, {31, 27},
	{24, 26}, {26, 28}, {28, 30}, {30, 32}, {32, 28},
}

// HandConnections are the 21 skeleton lines: four bones per finger plus the
// palm base joining the index and pinky knuckles.
var HandConnections = []Connection{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{Wrist, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{Wrist, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
	{IndexMCP, PinkyMCP},
}

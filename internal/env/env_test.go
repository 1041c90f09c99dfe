package env

import "testing"

func TestReverseSubstituted(t *testing.T) {
	e := New(10, 1000, 123)
	head := e.head()
	res := e.Step(Left) // Left is reverse of initial Right heading
	if res.Done {
		t.Fatalf("expected not done after reverse substitution")
	}
	if e.Dir != Right {
		t.Fatalf("expected direction to stay Right, got %v", e.Dir)
	}
	newHead := e.head()
	if newHead.X != head.X+1 || newHead.Y != head.Y {
		t.Errorf("expected head to advance by (+1,0), got (%d,%d) from (%d,%d)", newHead.X, newHead.Y, head.X, head.Y)
	}
	if res.Reward != 0 {
		t.Errorf("expected reward 0, got %v", res.Reward)
	}
}

func TestEatFood(t *testing.T) {
	e := New(10, 1000, 123)
	head := e.head()
	length := e.SnakeLength()
	e.SetFood(Point{X: head.X + 1, Y: head.Y})
	res := e.Step(Right)
	if res.Reward != 1 || !res.FoodEaten || res.Done {
		t.Fatalf("expected reward=1 food_eaten=true done=false, got %+v", res)
	}
	if e.SnakeLength() != length+1 {
		t.Errorf("expected length to grow by 1, got %d -> %d", length, e.SnakeLength())
	}
}

func TestWallCollision(t *testing.T) {
	e := New(10, 1000, 123)
	var res StepResult
	for i := 0; i < 20 && !res.Done; i++ {
		res = e.Step(Right)
	}
	if !res.Done || res.Won || res.Reward != -1 {
		t.Fatalf("expected wall collision within 20 steps, got %+v", res)
	}
}

func TestLegalMask(t *testing.T) {
	e := New(10, 1000, 1)
	mask := e.LegalMask()
	for a := Action(0); a < NumActions; a++ {
		want := a != opposite[e.Dir]
		if mask[a] != want {
			t.Errorf("action %d: expected legal=%v, got %v", a, want, mask[a])
		}
	}
}

func TestTensorShape(t *testing.T) {
	e := New(10, 1000, 1)
	tensor := e.StateTensor()
	if len(tensor) != TensorSize(10) {
		t.Fatalf("expected tensor length %d, got %d", TensorSize(10), len(tensor))
	}
	plane := 10 * 10
	var bodySum, headSum, foodSum float32
	for i := 0; i < plane; i++ {
		bodySum += tensor[i]
		headSum += tensor[plane+i]
		foodSum += tensor[2*plane+i]
	}
	if int(bodySum) != e.SnakeLength() {
		t.Errorf("expected body plane sum %d, got %v", e.SnakeLength(), bodySum)
	}
	if headSum != 1 {
		t.Errorf("expected head plane sum 1, got %v", headSum)
	}
	if foodSum != 1 {
		t.Errorf("expected food plane sum 1, got %v", foodSum)
	}
	dv := tensor[3*plane]
	for i := 1; i < plane; i++ {
		if tensor[3*plane+i] != dv {
			t.Errorf("direction plane not constant at index %d", i)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	e := New(10, 1000, 7)
	clone := e.Clone()
	clone.Step(Up)
	if e.SnakeLength() == 0 || clone.SnakeLength() == 0 {
		t.Fatal("unexpected empty snake")
	}
	if &e.Body[0] == &clone.Body[0] {
		t.Error("clone shares body slice with original")
	}
}

// Package goal содержит цели пользователя, оценку их прогресса и
// достижения, которые выдаются при разблокировке цели.
//
// Прогресс цели считается по сумме очков выполненных действий, дата
// выполнения которых попадает в окно [StartDate, EndDate], с ограничением
// сверху target_points. Бонус за достижение - round(target * 0.2).
package goal
